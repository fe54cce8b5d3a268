package twheel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jiansoft/robin"
	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc"
)

const (
	driverIdle int32 = iota
	driverRunning
	driverStopped
)

// releaseTimeout 是 Stop 等待工作池內處理函數結束的上限
const releaseTimeout = 3 * time.Second

// ============================================================================
// Driver
// ============================================================================
//
// Driver 持有一個 TimingWheel，並依照時鐘推進它：
//
//	robin fiber ──每 TickMs──▶ Advance(Clock())
//	                             │ 持有 mu
//	                             ├─ wheel.AdvanceClock → collect 收集過期任務
//	                             ├─ 非同步任務交給 ants 工作池或 conc goroutine
//	                             │ 釋放 mu
//	                             └─ 同步任務直接呼叫 Handler
//
// 所有對輪子的存取都經過同一把 mu。同步的 Handler 在鎖外執行，
// 因此處理函數可以對同一個 Driver 呼叫 Add 或 Remove。
// ============================================================================

// Driver 以時鐘驅動時間輪，可安全地被多個 goroutine 同時使用
type Driver struct {
	// opts 在建立後不再改變
	opts Options

	// mu 保護 wheel、expired，以及停止狀態與非同步派送之間的先後順序
	mu      sync.Mutex
	wheel   *TimingWheel
	expired []Task

	fiber  robin.Fiber
	ticker robin.Disposable
	pool   *ants.Pool
	wg     conc.WaitGroup

	state int32
	stats counters
}

// NewDriver 建立 Driver，根層級時鐘從 Clock() 的當下開始
//
// 參數：
//   - opts: 功能選項，未指定的欄位使用預設值
//
// 回傳：
//   - 建立完成的 Driver，尚未開始計時
//   - 工作池建立失敗時回傳錯誤
func NewDriver(opts ...Option) (*Driver, error) {
	d := &Driver{opts: NewOptions(opts...)}

	wheel, err := New(d.opts.TickMs, d.opts.WheelSize, d.opts.Clock(), HandlerFunc(d.collect))
	if err != nil {
		return nil, err
	}
	d.wheel = wheel

	if d.opts.PoolSize > 0 {
		pool, err := ants.NewPool(d.opts.PoolSize,
			ants.WithNonblocking(true),
			ants.WithPanicHandler(d.onPanic),
		)
		if err != nil {
			return nil, err
		}
		d.pool = pool
	}

	return d, nil
}

// Start 開始計時
//
// 實作細節：
//   - 使用 CAS 確保只啟動一次，已停止的 Driver 不會再啟動
//   - fiber 必須先 Start，排程的 tick 才會被執行
func (d *Driver) Start() {
	if !atomic.CompareAndSwapInt32(&d.state, driverIdle, driverRunning) {
		return
	}

	fiber := robin.NewGoroutineSingle()
	fiber.Start()
	d.fiber = fiber
	d.ticker = fiber.ScheduleOnInterval(0, d.opts.TickMs, d.tick)
	d.opts.Logger.Printf("twheel: driver started, tick %dms, %d slots", d.opts.TickMs, d.opts.WheelSize)
}

// Stop 停止計時並放棄仍在佇列中的任務
//
// 這個方法會：
// 1. 停止 fiber，不再產生新的 tick
// 2. 在 mu 之下清空輪子；之後的 Advance 不會再派送任何任務
// 3. 等待非同步的處理函數結束，並記錄其中的 panic
// 4. 釋放工作池
//
// 注意：停止後的 Driver 不能再啟動
func (d *Driver) Stop() {
	prev := atomic.SwapInt32(&d.state, driverStopped)
	if prev == driverStopped {
		return
	}

	if prev == driverRunning {
		d.ticker.Dispose()
		d.fiber.Dispose()
	}

	// 進行中的 Advance 若已取得 mu，它的非同步派送會在這之前登記完成
	d.mu.Lock()
	abandoned := d.wheel.Count()
	d.wheel.Shutdown()
	d.expired = nil
	d.mu.Unlock()

	if r := d.wg.WaitAndRecover(); r != nil {
		d.onPanic(r.Value)
	}
	if d.pool != nil {
		if err := d.pool.ReleaseTimeout(releaseTimeout); err != nil {
			d.opts.Logger.Printf("twheel: worker pool release: %v", err)
		}
	}

	d.opts.Logger.Printf("twheel: driver stopped, %d tasks abandoned", abandoned)
}

// IsRunning 回傳 Driver 是否正在計時
func (d *Driver) IsRunning() bool {
	return atomic.LoadInt32(&d.state) == driverRunning
}

// Add 將任務加入時間輪
//
// 回傳：
//   - ErrNilTask: task 為 nil
//   - ErrDriverStopped: Driver 已停止
//   - ErrTaskQueued: 任務已在輪中
func (d *Driver) Add(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if atomic.LoadInt32(&d.state) == driverStopped {
		return ErrDriverStopped
	}

	d.mu.Lock()
	ok := d.wheel.Add(task)
	d.mu.Unlock()

	if !ok {
		return ErrTaskQueued
	}
	atomic.AddInt64(&d.stats.added, 1)
	return nil
}

// Schedule 建立一個在 delay 之後過期的 BasicTask 並加入時間輪
func (d *Driver) Schedule(delay time.Duration, payload any) (*BasicTask, error) {
	task := NewTask(d.opts.Clock()+delay.Milliseconds(), payload)
	if err := d.Add(task); err != nil {
		return nil, err
	}
	return task, nil
}

// Remove 取消任務，任務不在此 Driver 中時回傳 false
func (d *Driver) Remove(task Task) bool {
	d.mu.Lock()
	ok := d.wheel.Remove(task)
	d.mu.Unlock()

	if ok {
		atomic.AddInt64(&d.stats.removed, 1)
	}
	return ok
}

// Count 回傳佇列中的任務數
func (d *Driver) Count() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.wheel.Count()
}

// Stats 回傳計數器快照
func (d *Driver) Stats() Statistics {
	return d.stats.snapshot(d.Count())
}

// Advance 將輪子推進到 now 並派送過期的任務
//
// 參數：
//   - now: 目標時間（毫秒）
//
// 回傳：
//   - 交給處理函數的任務數量；Driver 已停止時為 0
//
// 實作細節：
//   - 設定 MaxTicksPerAdvance 時，一次最多前進這麼多個 tick，其餘留待下次
//   - 工作池與 goroutine 派送不會阻塞，在 mu 之下登記，Stop 因此不會漏等
//   - 同步處理函數與被工作池拒絕的任務在釋放 mu 之後才執行
func (d *Driver) Advance(now int64) int {
	d.mu.Lock()
	if atomic.LoadInt32(&d.state) == driverStopped {
		d.mu.Unlock()
		return 0
	}

	target := now
	if d.opts.MaxTicksPerAdvance > 0 {
		limit := d.wheel.CurrentTime() + d.opts.TickMs*int64(d.opts.MaxTicksPerAdvance-1)
		if target > limit {
			d.opts.Logger.Printf("twheel: clock %d is %dms ahead, advancing to %d", now, now-limit, limit)
			target = limit
		}
	}
	d.wheel.AdvanceClock(target)
	expired := d.expired
	d.expired = nil

	inline := expired[:0:0]
	for _, task := range expired {
		if !d.dispatch(task) {
			inline = append(inline, task)
		}
	}
	d.mu.Unlock()

	for _, task := range inline {
		d.handle(task)
	}
	return len(expired)
}

// tick 在 fiber 上執行
func (d *Driver) tick() {
	d.Advance(d.opts.Clock())
}

// collect 是根層級的處理函數，執行時持有 d.mu
func (d *Driver) collect(task Task) {
	d.expired = append(d.expired, task)
}

// dispatch 嘗試以非阻塞方式派送任務，執行時持有 d.mu
//
// 回傳：
//   - false 表示任務需要由呼叫者在鎖外同步處理
func (d *Driver) dispatch(task Task) bool {
	atomic.AddInt64(&d.stats.fired, 1)

	switch {
	case d.pool != nil:
		if err := d.pool.Submit(func() { d.opts.Handler.Handle(task) }); err != nil {
			d.opts.Logger.Printf("twheel: worker pool rejected task: %v", err)
			return false
		}
		return true
	case d.opts.Async:
		d.wg.Go(func() { d.opts.Handler.Handle(task) })
		return true
	default:
		return false
	}
}

// handle 同步呼叫處理函數，並攔下 panic
func (d *Driver) handle(task Task) {
	defer func() {
		if r := recover(); r != nil {
			d.onPanic(r)
		}
	}()

	d.opts.Handler.Handle(task)
}

func (d *Driver) onPanic(p any) {
	d.opts.Logger.Printf("twheel: handler panic: %v", p)
}
