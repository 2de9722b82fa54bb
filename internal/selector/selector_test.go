// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }

// fixCandidates emits (index, timestampMS) pairs for a synthetic constant
// rate video: count frames at given fps.
func fixCandidates(count int, fps float64) []struct {
	index int
	tsMS  float64
} {
	out := make([]struct {
		index int
		tsMS  float64
	}, count)
	for i := 0; i < count; i++ {
		out[i].index = i
		out[i].tsMS = float64(i) / fps * 1000
	}
	return out
}

// runSelector feeds candidates through a Selector the way the pipeline
// does (Commit on Keep, break on SkipAfterEnd) and returns kept indices
// together with the number of candidates actually evaluated.
func runSelector(s *Selector, count int, fps float64) (kept []int, evaluated int) {
	for _, c := range fixCandidates(count, fps) {
		evaluated++
		switch s.Judge(c.index, c.tsMS) {
		case Keep:
			s.Commit(c.index, c.tsMS)
			kept = append(kept, c.index)
		case SkipAfterEnd:
			return kept, evaluated
		}
	}
	return kept, evaluated
}

func Test_Selector_NoPolicyKeepsEverything(t *testing.T) {
	kept, _ := runSelector(New(Config{}), 10, 10)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, kept)
}

func Test_Selector_StartBound(t *testing.T) {
	// 10 fps, frames at 0,100,...,900 ms.
	s := New(Config{StartMS: int64Ptr(300)})

	t.Run("Candidates before start are SkipBeforeStart", func(t *testing.T) {
		for _, c := range fixCandidates(10, 10) {
			want := Keep
			if c.tsMS < 300 {
				want = SkipBeforeStart
			}
			assert.Equal(t, want, s.Judge(c.index, c.tsMS), "index %d", c.index)
		}
	})

	t.Run("Kept set excludes pre-window frames", func(t *testing.T) {
		kept, _ := runSelector(New(Config{StartMS: int64Ptr(300)}), 10, 10)
		assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9}, kept)
	})
}

func Test_Selector_EndBoundIsTerminal(t *testing.T) {
	s := New(Config{EndMS: int64Ptr(500)})

	kept, evaluated := runSelector(s, 10, 10)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, kept)
	// Frame 5 at 500 ms triggers the terminal skip, frames 6..9 never get
	// evaluated at all.
	assert.Equal(t, 6, evaluated)
	assert.Equal(t, SkipAfterEnd, s.Judge(5, 500))
}

func Test_Selector_EveryNthFrame(t *testing.T) {
	mode, err := EveryNthFrame(3)
	require.NoError(t, err)

	kept, _ := runSelector(New(Config{Sampling: mode}), 10, 10)
	assert.Equal(t, []int{0, 3, 6, 9}, kept)
}

func Test_Selector_EveryNthFrame_IndexCountsFromStreamStart(t *testing.T) {
	// With a start bound the modulo is still computed on the absolute
	// stream index, so the in-window kept frames are those whose stream
	// index is a multiple of N, not every Nth in-window frame.
	mode, err := EveryNthFrame(4)
	require.NoError(t, err)

	kept, _ := runSelector(New(Config{StartMS: int64Ptr(300), Sampling: mode}), 12, 10)
	assert.Equal(t, []int{4, 8}, kept)
}

func Test_Selector_MinInterval(t *testing.T) {
	mode, err := MinInterval(250)
	require.NoError(t, err)

	t.Run("First eligible candidate is always kept", func(t *testing.T) {
		s := New(Config{StartMS: int64Ptr(300), Sampling: mode})
		assert.Equal(t, SkipBeforeStart, s.Judge(0, 0))
		assert.Equal(t, Keep, s.Judge(3, 300))
	})

	t.Run("Consecutive kept frames are at least the interval apart", func(t *testing.T) {
		kept, _ := runSelector(New(Config{Sampling: mode}), 20, 10)
		assert.Equal(t, []int{0, 3, 6, 9, 12, 15, 18}, kept)
		for i := 1; i < len(kept); i++ {
			gap := float64(kept[i]-kept[i-1]) / 10 * 1000
			assert.GreaterOrEqual(t, gap, 250.0)
		}
	})

	t.Run("Uncommitted keeps do not advance the cursor", func(t *testing.T) {
		s := New(Config{Sampling: mode})
		assert.Equal(t, Keep, s.Judge(0, 0))
		// Pretend frame 0 was dropped as blurry: no Commit. The very next
		// frame is then still the first eligible one.
		assert.Equal(t, Keep, s.Judge(1, 100))
		s.Commit(1, 100)
		assert.Equal(t, SkipBySampling, s.Judge(2, 200))
	})
}

// Scenario: 10 frames at 10 fps (1000 ms total), keep every 2nd frame, no
// bounds, no blur.
func Test_Selector_ScenarioEveryOther(t *testing.T) {
	mode, err := EveryNthFrame(2)
	require.NoError(t, err)

	kept, _ := runSelector(New(Config{Sampling: mode}), 10, 10)
	assert.Equal(t, []int{0, 2, 4, 6, 8}, kept)
}

// Scenario: same video with a [300, 700) ms window.
func Test_Selector_ScenarioWindow(t *testing.T) {
	s := New(Config{StartMS: int64Ptr(300), EndMS: int64Ptr(700)})

	kept, evaluated := runSelector(s, 10, 10)
	assert.Equal(t, []int{3, 4, 5, 6}, kept)
	// Frame 7 at 700 ms terminates the video, 8 and 9 are never seen.
	assert.Equal(t, 8, evaluated)
}

func Test_Selector_LastKept(t *testing.T) {
	s := New(Config{})

	_, _, ok := s.LastKept()
	assert.False(t, ok, "No cursor before first commit")

	s.Commit(4, 400)
	idx, ts, ok := s.LastKept()
	assert.True(t, ok)
	assert.Equal(t, 4, idx)
	assert.Equal(t, 400.0, ts)
}

func Test_SamplingMode_Constructors(t *testing.T) {
	t.Run("EveryNthFrame rejects non-positive n", func(t *testing.T) {
		for _, n := range []int{0, -1, -100} {
			_, err := EveryNthFrame(n)
			assert.ErrorIs(t, err, ErrInvalidConfig, "n=%d", n)
		}
	})

	t.Run("MinInterval rejects non-positive interval", func(t *testing.T) {
		for _, ms := range []int64{0, -1, -1000} {
			_, err := MinInterval(ms)
			assert.ErrorIs(t, err, ErrInvalidConfig, "ms=%d", ms)
		}
	})

	t.Run("Modes describe themselves", func(t *testing.T) {
		assert.Equal(t, "all frames", SampleAll().String())
		m, _ := EveryNthFrame(2)
		assert.Equal(t, "every 2 frame(s)", m.String())
		m, _ = MinInterval(1000)
		assert.Equal(t, "every 1000 ms", m.String())
	})
}

func Test_Config_Validate(t *testing.T) {
	tests := map[string]struct {
		given   Config
		wantErr bool
	}{
		"empty config":              {given: Config{}},
		"window only":               {given: Config{StartMS: int64Ptr(100), EndMS: int64Ptr(200)}},
		"end equals start":          {given: Config{StartMS: int64Ptr(100), EndMS: int64Ptr(100)}, wantErr: true},
		"end before start":          {given: Config{StartMS: int64Ptr(200), EndMS: int64Ptr(100)}, wantErr: true},
		"negative start":            {given: Config{StartMS: int64Ptr(-1)}, wantErr: true},
		"negative end":              {given: Config{EndMS: int64Ptr(-1)}, wantErr: true},
		"negative blur threshold":   {given: Config{BlurThreshold: floatPtr(-0.5)}, wantErr: true},
		"zero blur threshold is ok": {given: Config{BlurThreshold: floatPtr(0)}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := tc.given.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_Decision_String(t *testing.T) {
	assert.Equal(t, "keep", Keep.String())
	assert.Equal(t, "skip-after-end", SkipAfterEnd.String())
	assert.Equal(t, "skip-by-blur", SkipByBlur.String())
}
