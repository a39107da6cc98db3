package game

import "github.com/dpavlenko/cryptoquest/internal/storage"

// Puzzle describes one compiled-in challenge. Only the SHA-256 digest of
// the answer ships with the binary; the plaintext answer never does.
type Puzzle struct {
	ID             string
	Stage          storage.Stage // stage at which the puzzle is playable
	NextStage      storage.Stage
	NextProgress   int
	ExpectedDigest string
	Hint           string
}

// The puzzle table. Digest for "c1" is SHA-256("dragon").
var puzzles = map[string]Puzzle{
	"c1": {
		ID:             "c1",
		Stage:          storage.StageIntro,
		NextStage:      storage.StageAfterC1,
		NextProgress:   50,
		ExpectedDigest: "a9c43be948c5cabd56ef2bacffb77cdaa5eec49dd5eb0cc4129cf3eda5f0e74c",
		Hint:           "A fire-breathing creature guards the cave.",
	},
}

// stageOrder defines the forward direction of the progression graph.
var stageOrder = map[storage.Stage]int{
	storage.StageIntro:    0,
	storage.StageAfterC1:  1,
	storage.StageFinished: 2,
}

// stageHints is the informational text shown by ViewStage.
var stageHints = map[storage.Stage]string{
	storage.StageIntro:    "Solve the cave riddle (puzzle c1) to earn your first key.",
	storage.StageAfterC1:  "Use your key to reveal the secret link, then face the final riddle.",
	storage.StageFinished: "You have finished the quest.",
}

func lookupPuzzle(id string) (Puzzle, bool) {
	p, ok := puzzles[id]
	return p, ok
}

// stageAtOrPast reports whether current has already reached target in the
// progression graph.
func stageAtOrPast(current, target storage.Stage) bool {
	return stageOrder[current] >= stageOrder[target]
}
