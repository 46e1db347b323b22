package audio

import "fmt"

// Mix adds src into dst sample by sample, clamping the result to [-1, 1].
func Mix(dst, src []float32) error {
	if len(dst) != len(src) {
		return fmt.Errorf("%w: mixing %d samples into %d", ErrFrameSize, len(src), len(dst))
	}
	for i, s := range src {
		v := dst[i] + s
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		dst[i] = v
	}
	return nil
}
