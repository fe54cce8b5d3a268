package main

import (
	"log"
	"time"

	"github.com/jiansoft/twheel"
)

func main() {
	log.Println("=== twheel example ===")
	log.Println()

	// 1. Driving a wheel by hand
	demonstrateManualClock()

	// 2. Driver with its own clock
	demonstrateDriver()

	log.Println()
	log.Println("=== All examples completed ===")
}

// demonstrateManualClock advances a wheel with an explicit logical clock.
func demonstrateManualClock() {
	log.Println("--- 1. Manual clock ---")

	tw, err := twheel.New(1, 20, 0, twheel.HandlerFunc(func(task twheel.Task) {
		log.Printf("fired %v at deadline %d", task.(*twheel.BasicTask).Payload(), task.Expiration())
	}))
	if err != nil {
		log.Fatal(err)
	}

	tw.Add(twheel.NewTask(5, "five"))
	tw.Add(twheel.NewTask(45, "forty-five"))
	cancelled := twheel.NewTask(30, "thirty")
	tw.Add(cancelled)
	log.Printf("queued %d tasks on %d levels", tw.Count(), tw.Levels())

	tw.Remove(cancelled)
	for now := int64(0); now <= 50; now += 10 {
		tw.AdvanceClock(now)
	}
	log.Printf("left %d tasks", tw.Count())
	log.Println()
}

// demonstrateDriver lets a Driver tick in the background.
func demonstrateDriver() {
	log.Println("--- 2. Driver ---")

	done := make(chan struct{})
	d, err := twheel.NewDriver(
		twheel.WithTick(10*time.Millisecond),
		twheel.WithWheelSize(32),
		twheel.WithLogger(twheel.Printf),
		twheel.WithWorkerPool(8),
		twheel.WithHandler(twheel.HandlerFunc(func(task twheel.Task) {
			id := task.(*twheel.BasicTask).Payload()
			log.Printf("connection %v timed out", id)
			if id == "c" {
				close(done)
			}
		})),
	)
	if err != nil {
		log.Fatal(err)
	}

	d.Start()
	defer d.Stop()

	_, _ = d.Schedule(50*time.Millisecond, "a")
	b, _ := d.Schedule(100*time.Millisecond, "b")
	_, _ = d.Schedule(400*time.Millisecond, "c")

	// b saw traffic, cancel its timeout
	d.Remove(b)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		log.Println("timed out waiting for the driver")
	}

	stats := d.Stats()
	log.Printf("added %d, removed %d, fired %d, pending %d",
		stats.Added(), stats.Removed(), stats.Fired(), stats.Pending())
}
