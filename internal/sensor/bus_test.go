package sensor

import (
	goerrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

// probeBus records probed addresses and fails every transfer, as a bus with
// no responding devices would.
type probeBus struct {
	addrs []uint16
}

func (b *probeBus) String() string { return "probe" }

func (b *probeBus) Tx(addr uint16, _, _ []byte) error {
	b.addrs = append(b.addrs, addr)

	return goerrors.New("no device")
}

func (b *probeBus) SetSpeed(physic.Frequency) error { return nil }

func (b *probeBus) Close() error { return nil }

func TestBusRecoverSweepsAndSettles(t *testing.T) {
	probed := &probeBus{}

	var slept []time.Duration
	bus := &Bus{
		bus:   probed,
		sleep: func(d time.Duration) { slept = append(slept, d) },
	}

	// Probe errors on unpopulated addresses must not abort the sweep.
	bus.Recover()

	require.Len(t, probed.addrs, scanLastAddr-scanFirstAddr+1, "must probe every scannable address")
	assert.Equal(t, uint16(scanFirstAddr), probed.addrs[0])
	assert.Equal(t, uint16(scanLastAddr), probed.addrs[len(probed.addrs)-1])
	assert.Equal(t, []time.Duration{settleDelay}, slept, "devices need settle time after the rescan")
}
