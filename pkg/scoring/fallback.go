package scoring

// FallbackScale maps net profit in USD onto the heuristic confidence range.
// A net profit of FallbackScale or more saturates the score at 1.
const FallbackScale = 100.0

// Fallback computes the heuristic decision used whenever no trained model is
// available: profitable when net profit is positive, with a confidence score
// that grows linearly with net profit and clamps to [0, 1]. The score is not
// a calibrated probability and must not be compared against model output.
func Fallback(netProfit float64) (profitable bool, score float64) {
	score = netProfit / FallbackScale
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return netProfit > 0, score
}
