// Package twheel 實作階層式時間輪（hierarchical timing wheel）
package twheel

import "math"

// ============================================================================
// 階層式時間輪
// ============================================================================
//
// 每個層級有 wheelSize 個槽，每個槽涵蓋 tickMs，因此一個層級涵蓋
// interval = tickMs * wheelSize：
//
//	level 0  tick=1    [0][1][2] ... [19]          interval 20
//	level 1  tick=20   [0][1][2] ... [19]          interval 400
//	level 2  tick=400  [0][1][2] ... [19]          interval 8000
//
// 任務放在能涵蓋其到期時間的最細層級。當到期時間超出下層的視窗時，
// 才會建立更粗的層級（延遲建立）。
//
// AdvanceClock 從根層級（最細）驅動。每個層級在處理自己的當前槽之前，
// 會先把上層推進到同一時間，讓剛進入視窗的粗槽先被倒回細層：
//
//   - 根層級：過期的槽交給 Handler
//   - 其他層級：槽內任務重新加入下一層，以更細的解析度重新定位
//
// 新增、移除與過期皆為 O(1)；AdvanceClock 的成本是跨越的 tick 數加上
// 被取出的任務數。
//
// TimingWheel 不是並發安全的，多個 goroutine 使用時必須自行序列化
// （參考 Driver）。
// ============================================================================

// TimingWheel 是階層式時間輪的一個層級，New 回傳根層級，更粗的層級掛在它之上
type TimingWheel struct {
	// buckets 剛好 wheelSize 個，以 slot 索引
	buckets []*bucket

	// handler 接收過期任務，只有根層級會設定
	handler Handler

	// overflow 是上一個較粗的層級，第一次需要時才建立
	overflow *TimingWheel

	// lower 是接收降級任務的下一個較細層級，根層級為 nil
	lower *TimingWheel

	// tickMs 是一個槽涵蓋的毫秒數
	tickMs int64

	// wheelSize 是槽的數量
	wheelSize int64

	// interval 是 tickMs * wheelSize，溢位時飽和為 math.MaxInt64
	interval int64

	// currentTime 永遠是 tickMs 的倍數
	currentTime int64

	// taskCounter 只計算本層級的任務
	taskCounter int64

	// depth 根層級為 0，每往上一層加一
	depth int
}

// New 建立時間輪的根層級
//
// 參數：
//   - tickMs: 每個槽的毫秒數，必須大於 0
//   - wheelSize: 每層的槽數，必須大於 0
//   - startMs: 起始時間，會向下對齊到 tickMs 的倍數
//   - handler: 接收過期任務，不可為 nil
//
// 回傳：
//   - 根層級；參數不合法時回傳 ErrInvalidTick、ErrInvalidWheelSize 或 ErrNilHandler
func New(tickMs, wheelSize, startMs int64, handler Handler) (*TimingWheel, error) {
	if tickMs <= 0 {
		return nil, ErrInvalidTick
	}
	if wheelSize <= 0 {
		return nil, ErrInvalidWheelSize
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	return newLevel(tickMs, wheelSize, startMs, handler, nil), nil
}

func newLevel(tickMs, wheelSize, startMs int64, handler Handler, lower *TimingWheel) *TimingWheel {
	tw := &TimingWheel{
		tickMs:      tickMs,
		wheelSize:   wheelSize,
		interval:    span(tickMs, wheelSize),
		currentTime: truncate(startMs, tickMs),
		handler:     handler,
		lower:       lower,
		buckets:     make([]*bucket, wheelSize),
	}
	if lower != nil {
		tw.depth = lower.depth + 1
	}

	for i := range tw.buckets {
		tw.buckets[i] = newBucket(tw)
	}

	return tw
}

// Add 將任務放入涵蓋其到期時間的層級
//
// 回傳：
//   - task 為 nil 或已在佇列中時回傳 false，且不做任何事
//
// 實作細節：
//   - 到期時間已落後時鐘的任務放入當前槽，下一次 AdvanceClock 觸發
//   - 超出本層視窗時交給 overflow，必要時建立它
func (tw *TimingWheel) Add(task Task) bool {
	if task == nil || task.TimerEntry() != nil {
		return false
	}

	tw.add(task)
	return true
}

func (tw *TimingWheel) add(task Task) {
	expiration := task.Expiration()
	if tw.covers(expiration) {
		at := expiration
		if at < tw.currentTime {
			at = tw.currentTime
		}

		tw.buckets[tw.slot(at)].add(task)
		tw.taskCounter++
		return
	}

	if tw.overflow == nil {
		tw.overflow = newLevel(tw.interval, tw.wheelSize, tw.currentTime, nil, tw)
	}
	tw.overflow.add(task)
}

// Remove 在任務觸發之前將它移出時間輪
//
// 回傳：
//   - 任務不在佇列、已觸發、已移除或屬於其他時間輪時回傳 false
//
// 實作細節：
//   - 依任務回指的槽找到所屬層級，不用到期時間重算位置
//   - 只接受本層級或其上層持有的任務
func (tw *TimingWheel) Remove(task Task) bool {
	if task == nil {
		return false
	}

	e := task.TimerEntry()
	if e == nil || e.list == nil {
		return false
	}

	// 回指記錄了所屬的槽，也就知道所屬的層級
	owner := e.list.level
	for level := tw; level != nil; level = level.overflow {
		if level != owner {
			continue
		}

		if !e.list.remove(task) {
			return false
		}
		level.taskCounter--
		return true
	}

	return false
}

// AdvanceClock 一次一個 tick 地把時鐘推進到 timeMs，並清空經過的每個槽
//
// 參數：
//   - timeMs: 目標時間，早於目前時鐘時不做任何事
//
// 回傳：
//   - 離開本層級的任務數（根層級交給 handler，其他層級交給下一層）
//
// 實作細節：
//   - 先推進 overflow，讓粗槽先倒回本層
//   - 先前進時鐘再清空槽，處理函數重新加入的過期任務會落到下一個槽
//   - 清空只取出開始時已在槽中的任務
func (tw *TimingWheel) AdvanceClock(timeMs int64) int {
	drained := 0
	for timeMs >= tw.currentTime {
		if tw.overflow != nil {
			tw.overflow.AdvanceClock(tw.currentTime)
		}

		b := tw.buckets[tw.slot(tw.currentTime)]

		last := tw.currentTime > math.MaxInt64-tw.tickMs
		if !last {
			tw.currentTime += tw.tickMs
		}

		if b.size() > 0 {
			drained += b.drain(tw.expire)
		}

		if last {
			break
		}
	}

	return drained
}

func (tw *TimingWheel) expire(task Task) {
	tw.taskCounter--
	if tw.lower == nil {
		tw.handler.Handle(task)
		return
	}

	tw.lower.add(task)
}

// Count 回傳所有層級的任務總數
func (tw *TimingWheel) Count() int64 {
	count := tw.taskCounter
	if tw.overflow != nil {
		count += tw.overflow.Count()
	}
	return count
}

// ForEach 走訪所有任務，由細到粗，同層級從當前槽開始
//
// 注意：fn 不可新增或移除任務
func (tw *TimingWheel) ForEach(fn func(Task)) {
	if tw.taskCounter > 0 {
		start := tw.slot(tw.currentTime)
		for i := int64(0); i < tw.wheelSize; i++ {
			tw.buckets[(start+i)%tw.wheelSize].forEach(fn)
		}
	}

	if tw.overflow != nil {
		tw.overflow.ForEach(fn)
	}
}

// Shutdown 放棄本層級及以上的所有任務，不呼叫 handler，並清除任務回指
func (tw *TimingWheel) Shutdown() {
	if tw.overflow != nil {
		tw.overflow.Shutdown()
	}

	for _, b := range tw.buckets {
		b.clear()
	}
	tw.taskCounter = 0
}

// CurrentTime 回傳時鐘，為 TickMs 的倍數
func (tw *TimingWheel) CurrentTime() int64 {
	return tw.currentTime
}

// TickMs 回傳一個槽的毫秒數
func (tw *TimingWheel) TickMs() int64 {
	return tw.tickMs
}

// WheelSize 回傳每層的槽數
func (tw *TimingWheel) WheelSize() int64 {
	return tw.wheelSize
}

// Interval 回傳本層級涵蓋的毫秒數
func (tw *TimingWheel) Interval() int64 {
	return tw.interval
}

// Levels 回傳含本層在內的層級數
func (tw *TimingWheel) Levels() int {
	levels := 1
	for level := tw.overflow; level != nil; level = level.overflow {
		levels++
	}
	return levels
}

// covers 回傳 t 是否早於目前視窗的結尾，飽和的層級涵蓋一切
func (tw *TimingWheel) covers(t int64) bool {
	return t < tw.currentTime || t-tw.currentTime < tw.interval || tw.interval == math.MaxInt64
}

// slot 將 t 對應到槽的索引，所有定位共用此函數
func (tw *TimingWheel) slot(t int64) int64 {
	return floorMod(t, tw.interval) / tw.tickMs
}

// span 回傳 tickMs * wheelSize，溢位時為 math.MaxInt64
func span(tickMs, wheelSize int64) int64 {
	if tickMs > math.MaxInt64/wheelSize {
		return math.MaxInt64
	}
	return tickMs * wheelSize
}

// truncate 將 t 向下對齊到 m 的倍數（負數亦同）
func truncate(t, m int64) int64 {
	return t - floorMod(t, m)
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
