package kadmops

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kbin"
)

func TestAppendReadStringMapRoundTrip(t *testing.T) {
	in := map[string]*string{
		"retention.ms": StringPtr("604800000"),
		"cleanup.policy": nil,
	}

	buf := appendStringMap(nil, in)
	rd := kbin.Reader{Src: buf}
	out := readStringMap(&rd)
	require.NoError(t, checkComplete(&rd))

	require.Len(t, out, len(in))
	for k, v := range in {
		got, ok := out[k]
		require.True(t, ok, "missing key %q", k)
		if v == nil {
			require.Nil(t, got)
		} else {
			require.NotNil(t, got)
			require.Equal(t, *v, *got)
		}
	}
}

func TestAppendReadStringsRoundTrip(t *testing.T) {
	in := []string{"topic-a", "topic-b", "topic-c"}

	buf := appendStrings(nil, in)
	rd := kbin.Reader{Src: buf}
	out := readStrings(&rd)
	require.NoError(t, checkComplete(&rd))

	require.Equal(t, in, out)
}

func TestAppendReadStringsEmpty(t *testing.T) {
	buf := appendStrings(nil, nil)
	rd := kbin.Reader{Src: buf}
	out := readStrings(&rd)
	require.NoError(t, checkComplete(&rd))
	require.Nil(t, out)
}

func TestErrForCode(t *testing.T) {
	require.NoError(t, errForCode(0))
	require.Error(t, errForCode(3)) // UNKNOWN_TOPIC_OR_PARTITION
}
