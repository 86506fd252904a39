package lightsched

import (
	"encoding/json"
	"testing"

	"github.com/lightsched/lightsched-go/internal/model"
	"github.com/stretchr/testify/require"
)

func TestResourceClaimIsNull(t *testing.T) {
	require := require.New(t)

	require.True(ResourceClaim{}.IsNull())
	require.True(ResourceClaim{GPUMemory: 8, CUDA: 1020}.IsNull())
	require.False(ResourceClaim{NumCPUs: 0.5}.IsNull())
	require.False(ResourceClaim{Memory: 512}.IsNull())
	require.False(ResourceClaim{NumGPUs: 1}.IsNull())
	require.False(ResourceClaim{CPUFreq: 2400}.IsNull())
}

func TestNullClaimIsNotSent(t *testing.T) {
	require := require.New(t)

	require.Nil(ResourceClaim{}.toWire())
	require.Equal("default", ResourceClaim{}.String())

	// GPU memory, CUDA and extra resources alone do not make a claim.
	require.Nil(ResourceClaim{Others: map[string]string{"fpga": "1"}}.toWire())
	require.Nil(ResourceClaim{GPUMemory: 16, CUDA: 1020}.toWire())

	spec := NewJobSpecWithResources("extras", ResourceClaim{Others: map[string]string{"fpga": "1"}})
	spec.AddTaskCommand("a", "run", "")
	wire := spec.toWire()
	require.Nil(wire.Groups[0].Resources)
	require.Nil(wire.Groups[0].Tasks[0].Resources)
}

func TestResourceClaimWireEncoding(t *testing.T) {
	require := require.New(t)

	claim := ResourceClaim{
		NumCPUs:   2,
		CPUFreq:   2400,
		Memory:    4096,
		NumGPUs:   2,
		GPUMemory: 16,
		CUDA:      1020,
		Others:    map[string]string{"fpga": "1"},
	}

	b, err := json.Marshal(claim.toWire())
	require.Nil(err)
	require.JSONEq(`{
		"cpu": {"cores": "2.0", "frequency": "2.4GHz"},
		"memory": "4096Mi",
		"gpu": {"cards": "2", "memory": "16Gi", "cuda": 1020},
		"others": {"fpga": "1"}
	}`, string(b))
}

func TestResourceClaimRoundTrip(t *testing.T) {
	require := require.New(t)

	claims := []ResourceClaim{
		{NumCPUs: 1.8, NumGPUs: 1, GPUMemory: 4},
		{NumCPUs: 0.5, Memory: 256},
		{NumCPUs: 4, CPUFreq: 3100, Memory: 8192, NumGPUs: 2, GPUMemory: 12, CUDA: 1100},
	}

	for _, c := range claims {
		b, err := json.Marshal(c.toWire())
		require.Nil(err)

		var res model.Resources
		require.Nil(json.Unmarshal(b, &res))
		require.Equal(c, resourceClaimFromWire(&res))
	}
}

func TestResourceClaimFromServerFormats(t *testing.T) {
	require := require.New(t)

	var res model.Resources
	require.Nil(json.Unmarshal([]byte(`{"cpu":{"cores":8,"frequency":"3200MHz"},"memory":"16384Mi","gpu":{"cards":"1","memory":"bogus","cuda":"1020"}}`), &res))

	claim := resourceClaimFromWire(&res)
	require.Equal(8.0, claim.NumCPUs)
	require.Equal(3200, claim.CPUFreq)
	require.Equal(16384, claim.Memory)
	require.Equal(1, claim.NumGPUs)
	require.Equal(0, claim.GPUMemory)
	require.Equal(1020, claim.CUDA)

	require.Equal(ResourceClaim{}, resourceClaimFromWire(nil))
}

func TestResourceClaimString(t *testing.T) {
	require := require.New(t)

	claim := ResourceClaim{NumCPUs: 1.5, CPUFreq: 2000, Memory: 512, NumGPUs: 1, GPUMemory: 8}
	require.Equal("1.5 cpu @2000MHz, 512Mi, 1 gpu x 8Gi", claim.String())
}

func TestCPUFrequencyRoundsToHundredMHz(t *testing.T) {
	require := require.New(t)

	for freq, expected := range map[int]int{2450: 2500, 2449: 2400, 3100: 3100, 999: 1000} {
		b, err := json.Marshal(ResourceClaim{NumCPUs: 1, CPUFreq: freq}.toWire())
		require.Nil(err)

		var res model.Resources
		require.Nil(json.Unmarshal(b, &res))
		require.Equal(expected, resourceClaimFromWire(&res).CPUFreq, "frequency %d", freq)
	}
}
