package audio

// Chunk is one planned slice of a call, in seconds.
type Chunk struct {
	Index  int
	Start  float64
	Length float64
}

// End returns Start+Length.
func (c Chunk) End() float64 { return c.Start + c.Length }

const (
	// minChunkSec is the shortest slice worth sending; anything at or below is dropped.
	minChunkSec = 0.001

	fiveChunkMinutes  = 21.0
	sixChunkMinutes   = 30.0
	sevenChunkMinutes = 40.0
)

// ChunkCount picks how many slices a call of the given length is split into.
// Calls under 21 minutes use defaultN (at least 1); longer calls get 5, 6 or 7
// slices regardless of defaultN.
func ChunkCount(durationSec float64, defaultN int) int {
	minutes := durationSec / 60.0
	switch {
	case minutes >= sevenChunkMinutes:
		return 7
	case minutes >= sixChunkMinutes:
		return 6
	case minutes >= fiveChunkMinutes:
		return 5
	}
	if defaultN < 1 {
		return 1
	}
	return defaultN
}

// Plan splits [0, duration] into n slices of equal target width. Every slice
// after the first starts buffer seconds before its ideal boundary (never
// before 0) so words cut at a boundary reappear in the next slice. The last
// slice always ends at duration.
func Plan(duration float64, n int, buffer float64) []Chunk {
	if duration <= 0 || n <= 1 {
		return []Chunk{{Index: 0, Start: 0, Length: max(duration, minChunkSec)}}
	}
	if buffer < 0 {
		buffer = 0
	}

	width := duration / float64(n)
	chunks := make([]Chunk, 0, n)
	for i := 0; i < n; i++ {
		start := width * float64(i)
		end := width * float64(i+1)
		if i == n-1 {
			end = duration
		}
		if i > 0 {
			start = max(0, start-buffer)
		}
		length := max(0, end-start)
		if length <= minChunkSec {
			continue
		}
		chunks = append(chunks, Chunk{Index: i, Start: start, Length: length})
	}
	return chunks
}
