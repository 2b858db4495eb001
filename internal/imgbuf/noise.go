package imgbuf

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Default noise probabilities
const (
	DefaultSaltProbability   = 0.2
	DefaultPepperProbability = 0.2
)

// SaltAndPepper whitens exactly floor(saltProbability*pixels) pixels and blackens exactly
// floor(pepperProbability*pixels) other pixels, picked at random from rng.
// A nil rng uses a time seeded source.
func (b *Buffer) SaltAndPepper(rng *rand.Rand, saltProbability, pepperProbability float64) error {
	if err := b.expect(RGB, "salt and pepper"); err != nil {
		return err
	}

	if !validProbability(saltProbability) || !validProbability(pepperProbability) {
		return fmt.Errorf("%w: probabilities must be within [0, 1], got %v and %v", ErrInvalidParameter, saltProbability, pepperProbability)
	}

	if saltProbability+pepperProbability > 1 {
		return fmt.Errorf("%w: salt and pepper probabilities add up to more than 1", ErrInvalidParameter)
	}

	width := b.Width()
	total := b.Height() * width
	numSalt := int(math.Floor(saltProbability * float64(total)))
	numPepper := int(math.Floor(pepperProbability * float64(total)))
	if numSalt+numPepper > total {
		return fmt.Errorf("%w: %d noisy pixels requested for %d pixels", ErrInvalidParameter, numSalt+numPepper, total)
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	result := copyRows(b.rgb)

	// A permutation prefix gives distinct indices, so the two sets never overlap
	for k, index := range rng.Perm(total)[:numSalt+numPepper] {
		row, col := index/width, index%width
		if k < numSalt {
			result[row][col] = White
		} else {
			result[row][col] = Black
		}
	}

	b.rgb = result
	return nil
}

func validProbability(p float64) bool {
	return p >= 0 && p <= 1
}
