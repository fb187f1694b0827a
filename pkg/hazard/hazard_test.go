package hazard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHazardsDeduplicate(t *testing.T) {
	h := New(FireHazard, FireHazard, AirPoisoning)

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, []Hazard{FireHazard, AirPoisoning}, h.All())
}

func TestHazardsInsertionOrder(t *testing.T) {
	h := New().Add(VideoDisplay).Add(FireHazard).Add(SpendMoney)

	assert.Equal(t, []Hazard{VideoDisplay, FireHazard, SpendMoney}, h.All())
}

func TestHazardsIntersection(t *testing.T) {
	a := New(FireHazard, ElectricEnergyConsumption, LogEnergyConsumption)
	b := New(LogEnergyConsumption, FireHazard, WaterFlooding)

	got := a.Intersection(b)
	assert.Equal(t, []Hazard{FireHazard, LogEnergyConsumption}, got.All())

	// Disjoint sets intersect to empty.
	assert.True(t, a.Intersection(New(WaterFlooding)).IsEmpty())

	// Nil receiver and nil argument behave as empty sets.
	var nilSet *Hazards
	assert.True(t, nilSet.Intersection(a).IsEmpty())
	assert.True(t, a.Intersection(nil).IsEmpty())
}

func TestHazardsJSONRoundTrip(t *testing.T) {
	h := New(FireHazard, TakePictures)

	data, err := json.Marshal(h)
	require.NoError(t, err)
	assert.JSONEq(t, `["FireHazard","TakePictures"]`, string(data))

	var decoded Hazards
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, h.All(), decoded.All())
}

func TestHazardsUnmarshalDropsDuplicates(t *testing.T) {
	var h Hazards
	require.NoError(t, json.Unmarshal([]byte(`["FireHazard","FireHazard"]`), &h))
	assert.Equal(t, 1, h.Len())
	assert.True(t, h.Contains(FireHazard))
}

func TestEmptyMarshal(t *testing.T) {
	data, err := json.Marshal(New())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
