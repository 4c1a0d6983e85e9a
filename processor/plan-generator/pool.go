package plangenerator

import "sync"

// dispatch runs handle on every job with at most workers in flight, and
// returns once jobs is closed and all handlers have finished.
func dispatch[T any](workers int, jobs <-chan T, handle func(T)) {
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				handle(job)
			}
		}()
	}
	wg.Wait()
}
