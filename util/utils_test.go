package util

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, Map([]int{1, 2}, strconv.Itoa))
	assert.Empty(t, Map([]int{}, strconv.Itoa))
}

func TestFilter(t *testing.T) {
	even := func(n int) bool { return n%2 == 0 }
	assert.Equal(t, []int{2, 4}, Filter([]int{1, 2, 3, 4}, even))
	assert.Equal(t, []int{}, Filter([]int{1}, even))
}

func TestReduce(t *testing.T) {
	sum := Reduce([]int{1, 2, 3}, func(n, acc int) int { return acc + n }, 10)
	assert.Equal(t, 16, sum)
}
