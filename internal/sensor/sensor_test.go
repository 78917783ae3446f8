package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeSensor writes one key on success and counts invocations.
type fakeSensor struct {
	key     string
	value   float64
	ok      bool
	updates int
}

func (f *fakeSensor) Update(values Values) bool {
	f.updates++
	if f.ok {
		values[f.key] = f.value
	}

	return f.ok
}

// fakeRecoverer counts bus recovery requests.
type fakeRecoverer struct {
	recoveries int
}

func (f *fakeRecoverer) Recover() { f.recoveries++ }

func TestCollectionAllSucceed(t *testing.T) {
	a := &fakeSensor{key: KeyTemperature, value: 20, ok: true}
	b := &fakeSensor{key: KeyLight, value: 300, ok: true}

	values := Values{}
	ok := NewCollection(a, b).Update(values)

	assert.True(t, ok)
	assert.Equal(t, Values{KeyTemperature: 20, KeyLight: 300}, values)
}

func TestCollectionPartialFailure(t *testing.T) {
	a := &fakeSensor{key: KeyTemperature, value: 20, ok: false}
	b := &fakeSensor{key: KeyLight, value: 300, ok: true}
	c := &fakeSensor{key: KeyProximity, value: 0, ok: true}

	values := Values{}
	ok := NewCollection(a, b, c).Update(values)

	assert.False(t, ok, "one failing member must fail the cycle")
	assert.Equal(t, 1, a.updates)
	assert.Equal(t, 1, b.updates, "later members still run after a failure")
	assert.Equal(t, 1, c.updates)
	assert.Equal(t, Values{KeyLight: 300, KeyProximity: 0}, values,
		"succeeding members' keys stay, the failing member's key is absent")
}

func TestCollectionSingleSensorPassthrough(t *testing.T) {
	a := &fakeSensor{key: KeyLight, ok: true}
	assert.Same(t, Sensor(a), NewCollection(a))
}
