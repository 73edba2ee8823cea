package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBattery(t *testing.T) {
	tests := []struct {
		minutes float64
		want    string
	}{
		{0, "0 minutes"},
		{42, "42 minutes"},
		{90.5, "90.5 minutes"},
		{1e12, "1000000000000 minutes"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, renderBattery(Known(tt.minutes)))
	}
	assert.Equal(t, UnknownValue, renderBattery(Unknown[float64]()))
}

func TestField(t *testing.T) {
	var zero Field[string]
	assert.False(t, zero.IsKnown(), "zero value is Unknown")

	k := Known("")
	v, ok := k.Get()
	assert.True(t, ok, "empty string is a concrete value")
	assert.Equal(t, "", v)

	assert.Equal(t, k, Unknown[string]().Or(k))
	assert.Equal(t, Known("new"), Known("new").Or(k))
	assert.False(t, Unknown[int]().Or(Unknown[int]()).IsKnown())
}

func TestChannelState_Attribute(t *testing.T) {
	ch := ChannelState{
		Name:     Known("Vocal1"),
		Mute:     Known(true),
		Battery:  Known(42.0),
		Warnings: Known([]string{}),
	}

	tests := []struct {
		attr    string
		want    string
		wantErr error
	}{
		{AttrName, "Vocal1", nil},
		{AttrMute, MuteMuted, nil},
		{AttrBattery, "42 minutes", nil},
		{AttrWarnings, "", nil},
		{AttrFrequency, "", ErrAttributeUnknown},
		{AttrGain, "", ErrAttributeUnknown},
		{AttrMates, "", ErrAttributeUnknown},
		{"volume", "", ErrAttributeNotFound},
		{"", "", ErrAttributeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.attr, func(t *testing.T) {
			got, err := ch.Attribute(tt.attr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChannelSnapshot_JSON(t *testing.T) {
	ds := DeviceState{Key: "R1"}
	ds.Channels[0].Name = Known("Vocal1")
	ds.Channels[0].Mates = Known([]string{"a", "b"})

	data, err := json.Marshal(Snapshot{"R1": ds.Snapshot()})
	require.NoError(t, err)

	want := `{"R1":{"channel1":{"name":"Vocal1","mute":"unknown","frequency":"unknown","gain":"unknown",` +
		`"battery":"unknown","warnings":"unknown","mates":"a, b"},` +
		`"channel2":{"name":"unknown","mute":"unknown","frequency":"unknown","gain":"unknown",` +
		`"battery":"unknown","warnings":"unknown","mates":"unknown"}}}`
	assert.JSONEq(t, want, string(data))
}

func seedStore(t *testing.T) *Store {
	t.Helper()
	e, store := newTestEngine(t)
	reconcile(e, on(1, ChannelUpdate{Name: Known("Vocal1"), Warnings: Known([]string{"RF low"})}))
	return store
}

func TestStore_Lookups(t *testing.T) {
	store := seedStore(t)

	_, err := store.DeviceSnapshot("R9")
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	_, err = store.Channel("R1", 3)
	assert.ErrorIs(t, err, ErrChannelNotFound)
	_, err = store.Channel("R1", 0)
	assert.ErrorIs(t, err, ErrChannelNotFound)

	ch, err := store.Channel("R1", 2)
	require.NoError(t, err, "both channels exist once the device does")
	assert.Equal(t, allUnknown(), ch)

	_, err = store.Attribute("R9", 1, AttrName)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	_, err = store.Attribute("R1", 5, AttrName)
	assert.ErrorIs(t, err, ErrChannelNotFound)
	_, err = store.Attribute("R1", 1, "volume")
	assert.ErrorIs(t, err, ErrAttributeNotFound)
	_, err = store.Attribute("R1", 1, AttrGain)
	assert.ErrorIs(t, err, ErrAttributeUnknown)

	v, err := store.Attribute("R1", 1, AttrName)
	require.NoError(t, err)
	assert.Equal(t, "Vocal1", v)
}

func TestStore_DeviceIsDeepCopy(t *testing.T) {
	store := seedStore(t)

	ds, err := store.Device("R1")
	require.NoError(t, err)
	warnings, _ := ds.Channels[0].Warnings.Get()
	warnings[0] = "mutated"
	ds.Channels[0].Name = Known("mutated")

	ch, err := store.Channel("R1", 1)
	require.NoError(t, err)
	assert.Equal(t, "Vocal1", ch.Name)
	assert.Equal(t, "RF low", ch.Warnings)
}

func TestStore_SnapshotIsIndependent(t *testing.T) {
	store := seedStore(t)

	snap := store.Snapshot()
	delete(snap, "R1")

	assert.Len(t, store.Snapshot(), 1)
	assert.Equal(t, []string{"R1"}, store.Keys())
}
