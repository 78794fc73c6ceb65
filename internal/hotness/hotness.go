// Package hotness tracks how frequently distinct source addresses appear,
// decayed over time, for display alongside the score in query results. It
// never feeds the score itself.
package hotness

type Interface interface {
	Inc(sourceAddress string)
	Score(sourceAddress string) float64
	Reset(sourceAddresses ...string)
}
