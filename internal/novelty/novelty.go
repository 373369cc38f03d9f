// Package novelty holds the two stateless fun commands: the jiaobei
// divination draw and the random-choice lottery.
package novelty

import "math/rand/v2"

// DivinationResult is one jiaobei outcome.
type DivinationResult struct {
	Name    string
	Meaning string
}

var divinationResults = []DivinationResult{
	{Name: "聖筊 👍", Meaning: "同意"},
	{Name: "陰筊 👎", Meaning: "不同意"},
	{Name: "笑筊 🤔", Meaning: "重新問"},
}

// Draw answers a yes/no question with one random jiaobei outcome.
func Draw() DivinationResult {
	return draw(rand.IntN)
}

func draw(intn func(int) int) DivinationResult {
	return divinationResults[intn(len(divinationResults))]
}

// Pick chooses one option at random. The caller guarantees options is
// non-empty (the parser rejects an empty lottery).
func Pick(options []string) string {
	return pick(options, rand.IntN)
}

func pick(options []string, intn func(int) int) string {
	return options[intn(len(options))]
}
