package gateway

// RelayForTest exposes the relay state machine.
type RelayForTest struct{ r *relay }

func NewRelayForTest(cleanup func()) RelayForTest {
	return RelayForTest{r: newRelay(cleanup)}
}

func (rt RelayForTest) End() bool  { return rt.r.finish(stateEnded) }
func (rt RelayForTest) Fail() bool { return rt.r.finish(stateFailed) }
