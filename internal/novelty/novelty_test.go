package novelty

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDraw_CoversAllOutcomes(t *testing.T) {
	for i := range divinationResults {
		result := draw(func(n int) int { return i % n })
		assert.Equal(t, divinationResults[i], result)
	}
}

func TestPick(t *testing.T) {
	options := []string{"火鍋", "燒肉", "拉麵"}

	assert.Equal(t, "火鍋", pick(options, func(int) int { return 0 }))
	assert.Equal(t, "拉麵", pick(options, func(int) int { return 2 }))
}

func TestPick_SingleOption(t *testing.T) {
	assert.Equal(t, "唯一", Pick([]string{"唯一"}))
}
