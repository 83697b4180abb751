package transport

// Transport is a line-oriented source of raw telemetry records.
//
// ReadLine blocks for at most one poll interval. It returns ErrNoData when
// nothing complete arrived in that time; any other error means the
// transport is unusable.
type Transport interface {
	ReadLine() (string, error)
	Close() error
	Name() string
}
