package loader

// Option configures a Loader.
type Option func(l *Loader)

// WithBatchSize sets the number of subjects per batch. Default 1.
func WithBatchSize(size int) Option {
	return func(l *Loader) { l.batchSize = size }
}

// WithNumWorkers sets how many subjects are loaded and transformed
// concurrently. Default 1.
func WithNumWorkers(workers int) Option {
	return func(l *Loader) { l.numWorkers = workers }
}

// WithPrefetch sets the batch output buffer size. Default equals the worker
// count.
func WithPrefetch(batches int) Option {
	return func(l *Loader) { l.prefetch = batches }
}

// WithShuffle visits the dataset in a new random order every run.
func WithShuffle(seed int64) Option {
	return func(l *Loader) {
		l.shuffle = true
		l.seed = seed
	}
}

// WithDropLast drops the final short batch of a run.
func WithDropLast() Option {
	return func(l *Loader) { l.dropLast = true }
}

// WithObserver attaches a run observer such as a measure or a drawer.
func WithObserver(obs Observer) Option {
	return func(l *Loader) { l.observers = append(l.observers, obs) }
}
