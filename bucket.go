package twheel

import "sync"

// entryPool 回收槽位項目，穩定的新增/過期流量不會產生額外配置
var entryPool = sync.Pool{
	New: func() any {
		return new(Entry)
	},
}

func acquireEntry(task Task) *Entry {
	e := entryPool.Get().(*Entry)
	e.task = task
	e.expiration = task.Expiration()
	return e
}

func releaseEntry(e *Entry) {
	*e = Entry{}
	entryPool.Put(e)
}

// bucket 儲存同一層級同一個槽內的所有任務
//
// 鏈結是以 root 哨兵為中心的環狀雙向串列：
//   - 尾端永遠是 root.prev
//   - 移除只需要改寫前後兩個鄰居
//   - root 不計入 count，也不會被走訪
//
// 排空期間，排空開始時存在的項目會被搬到另一條以 draining 為哨兵的鏈上，
// 它們仍屬於這個 bucket（list 指向 b，計入 count）。
type bucket struct {
	root Entry

	// draining 是排空中的暫存鏈哨兵，沒有排空時為 nil
	draining *Entry

	// level 是擁有這個 bucket 的層級
	level *TimingWheel

	// count 是兩條鏈上項目的總數
	count int64
}

func newBucket(level *TimingWheel) *bucket {
	b := &bucket{level: level}
	b.root.next = &b.root
	b.root.prev = &b.root
	return b
}

// add 將任務接在目前的尾端，並把任務的回指設為新項目
func (b *bucket) add(task Task) {
	e := acquireEntry(task)
	tail := b.root.prev
	e.prev = tail
	e.next = &b.root
	tail.next = e
	b.root.prev = e
	e.list = b
	task.SetTimerEntry(e)
	b.count++
}

// remove 在任務的回指屬於這個 bucket 時將其移除
//
// 回傳：
//   - true 表示已移除；任務不在此 bucket 時回傳 false
func (b *bucket) remove(task Task) bool {
	e := task.TimerEntry()
	if e == nil || e.list != b {
		return false
	}

	b.unlink(e)
	return true
}

// unlink 將 e 從所在的鏈上拆下，清除任務回指並回收 e
//
// 回傳：
//   - e 所包裝的任務
func (b *bucket) unlink(e *Entry) Task {
	e.prev.next = e.next
	e.next.prev = e.prev
	b.count--

	task := e.task
	task.SetTimerEntry(nil)
	releaseEntry(e)
	return task
}

// forEach 依加入順序走訪任務，visit 不可新增或移除此 bucket 的任務
func (b *bucket) forEach(visit func(Task)) {
	for e := b.root.next; e != &b.root; {
		next := e.next
		visit(e.task)
		e = next
	}
}

// drain 依序取出呼叫當下已存在的任務，先拆下再交給 visit
//
// 參數：
//   - visit: 處理每個取出的任務，可以對此 bucket 新增或移除任務
//
// 回傳：
//   - 實際交給 visit 的任務數量
//
// 實作細節：
//   - 開始時把整條鏈搬到暫存哨兵下，root 變成空鏈
//   - visit 新加入的任務接在 root 鏈上，這一輪不會被取出
//   - visit 移除尚未走訪的任務時，它直接從暫存鏈上拆下，不會被取出
func (b *bucket) drain(visit func(Task)) int {
	if b.root.next == &b.root {
		return 0
	}

	var pending Entry
	pending.next = b.root.next
	pending.prev = b.root.prev
	pending.next.prev = &pending
	pending.prev.next = &pending
	b.root.next = &b.root
	b.root.prev = &b.root
	b.draining = &pending

	drained := 0
	for pending.next != &pending {
		visit(b.unlink(pending.next))
		drained++
	}

	b.draining = nil
	return drained
}

func (b *bucket) size() int64 {
	return b.count
}

// clear 丟棄所有項目但不走訪，包含排空中尚未取出的項目
func (b *bucket) clear() {
	b.release(&b.root)
	if b.draining != nil {
		b.release(b.draining)
	}
	b.count = 0
}

// release 回收 head 哨兵下的每個項目並把 head 重設為空鏈
func (b *bucket) release(head *Entry) {
	for e := head.next; e != head; {
		next := e.next
		e.task.SetTimerEntry(nil)
		releaseEntry(e)
		e = next
	}

	head.next = head
	head.prev = head
}
