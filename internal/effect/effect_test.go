package effect

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, e Effect) Record {
	t.Helper()
	data, err := Encode(e)
	require.NoError(t, err)
	rec, err := DecodeRecord(data)
	require.NoError(t, err)
	return rec
}

func TestDelayEncoding(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		wantMS   float64
	}{
		{
			name:     "zero duration",
			duration: 0,
			wantMS:   0,
		},
		{
			name:     "ten milliseconds",
			duration: 10 * time.Millisecond,
			wantMS:   10,
		},
		{
			name:     "sub-millisecond truncates",
			duration: 1500 * time.Microsecond,
			wantMS:   1,
		},
		{
			name:     "one minute",
			duration: time.Minute,
			wantMS:   60000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDelay(tt.duration)
			require.NoError(t, err)

			rec := decode(t, d)
			assert.Equal(t, tt.wantMS, rec["duration_ms"])
			assert.Equal(t, DefaultOp, rec["op"])
			assert.NotContains(t, rec, "errno")
		})
	}
}

func TestDelayRejectsNegativeDuration(t *testing.T) {
	_, err := NewDelay(-time.Second)
	assert.ErrorIs(t, err, ErrNegativeDuration)
}

func TestProbValidation(t *testing.T) {
	tests := []struct {
		name    string
		p       float64
		wantErr error
	}{
		{name: "zero", p: 0},
		{name: "half", p: 0.5},
		{name: "one", p: 1},
		{name: "below range", p: -0.1, wantErr: ErrProbRange},
		{name: "above range", p: 1.1, wantErr: ErrProbRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Prob(tt.p)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			rec := decode(t, f)
			assert.Equal(t, tt.p, rec["prob"])
			assert.Equal(t, float64(DefaultErrno), rec["errno"])
			assert.NotContains(t, rec, "avail_ms")
			assert.NotContains(t, rec, "unavail_ms")
		})
	}
}

func TestIntervalEncoding(t *testing.T) {
	f, err := Interval(100*time.Millisecond, 50*time.Millisecond)
	require.NoError(t, err)

	rec := decode(t, f)
	assert.Equal(t, float64(100), rec["avail_ms"])
	assert.Equal(t, float64(50), rec["unavail_ms"])
	assert.Equal(t, float64(DefaultErrno), rec["errno"])
	assert.NotContains(t, rec, "prob")
}

func TestIntervalRejectsNegativeWindows(t *testing.T) {
	_, err := Interval(-time.Second, time.Second)
	assert.ErrorIs(t, err, ErrNegativeDuration)

	_, err = Interval(time.Second, -time.Second)
	assert.ErrorIs(t, err, ErrNegativeDuration)
}

func TestAlwaysEncodesLikeProbOne(t *testing.T) {
	always, err := Always()
	require.NoError(t, err)
	one, err := Prob(1)
	require.NoError(t, err)

	adata, err := Encode(always)
	require.NoError(t, err)
	pdata, err := Encode(one)
	require.NoError(t, err)
	assert.Equal(t, pdata, adata)
}

func TestMaxSize(t *testing.T) {
	t.Run("zero limit is encoded explicitly", func(t *testing.T) {
		m, err := NewMaxSize(0)
		require.NoError(t, err)

		rec := decode(t, m)
		require.Contains(t, rec, "limit")
		assert.Equal(t, float64(0), rec["limit"])
	})

	t.Run("negative limit is rejected", func(t *testing.T) {
		_, err := NewMaxSize(-1)
		assert.ErrorIs(t, err, ErrNegativeLimit)
	})
}

func TestHeatmap(t *testing.T) {
	tests := []struct {
		name    string
		align   int64
		wantErr error
	}{
		{name: "page aligned", align: 4096},
		{name: "single byte", align: 1},
		{name: "zero", align: 0, wantErr: ErrAlignNotPositive},
		{name: "negative", align: -8, wantErr: ErrAlignNotPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHeatmap(tt.align)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, float64(tt.align), decode(t, h)["align"])
		})
	}
}

func TestOptions(t *testing.T) {
	f, err := Prob(0.25, WithOp("w"), WithErrno(28))
	require.NoError(t, err)

	rec := decode(t, f)
	assert.Equal(t, "w", rec["op"])
	assert.Equal(t, float64(28), rec["errno"])
}

func TestNamesAreUniqueAndMonotonic(t *testing.T) {
	d, err := NewDelay(time.Millisecond)
	require.NoError(t, err)
	f, err := Always()
	require.NoError(t, err)
	m, err := NewMaxSize(1024)
	require.NoError(t, err)
	h, err := NewHeatmap(512)
	require.NoError(t, err)

	effects := []Effect{d, f, m, h}
	seen := make(map[string]bool)
	prev := uint64(0)
	for _, e := range effects {
		name := e.Name()
		assert.False(t, seen[name], "name %q reused", name)
		seen[name] = true

		kind, num, found := strings.Cut(name, "-")
		require.True(t, found, "name %q has no counter suffix", name)
		assert.NotEmpty(t, kind)

		n, err := strconv.ParseUint(num, 10, 64)
		require.NoError(t, err)
		assert.Greater(t, n, prev, "names must increase in construction order")
		prev = n
	}
}

func TestEncodeIsValidJSON(t *testing.T) {
	f, err := Interval(time.Second, 2*time.Second, WithOp("r"))
	require.NoError(t, err)

	data, err := Encode(f)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}
