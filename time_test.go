package plinkbgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeValueScanRoundTrip(t *testing.T) {
	then := time.Date(2019, 6, 3, 12, 0, 0, 0, time.UTC)

	v, err := Time(then).Value()
	require.NoError(t, err)
	require.Equal(t, then.Unix(), v)

	var scanned Time
	require.NoError(t, scanned.Scan(v))
	require.Equal(t, then.Unix(), time.Time(scanned).Unix())
}

func TestTimeScanText(t *testing.T) {
	var scanned Time
	require.NoError(t, scanned.Scan([]byte("2019-06-03 12:00:00")))
	require.Equal(t, 2019, time.Time(scanned).Year())

	require.Error(t, scanned.Scan(3.14))
}
