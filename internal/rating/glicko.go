// Package rating implements Glicko-2 rating updates with the ladder's
// modifier pipeline and the settlement coin economy.
package rating

import "math"

// Glicko-2 system constants. Elo is the display scale; mu/phi are the
// internal Glicko-2 scale.
const (
	DefaultElo        = 1500.0
	ScaleFactor       = 173.7178
	DefaultDeviation  = 200.0
	DefaultVolatility = 0.06
	Tau               = 0.5
	epsilon           = 1e-6
)

// glicko2Update runs one Glicko-2 rating period for a single player
// against a single opponent. score is 1 for a win, 0.5 for a tie, 0
// for a loss. Returns the updated (elo, deviation, volatility).
func glicko2Update(elo, rd, sigma, oppElo, oppRD, score float64) (float64, float64, float64) {
	// Step 2: convert to Glicko-2 scale.
	mu := (elo - DefaultElo) / ScaleFactor
	phi := rd / ScaleFactor
	muJ := (oppElo - DefaultElo) / ScaleFactor
	phiJ := oppRD / ScaleFactor

	// Step 3: estimated variance of the rating from game outcomes.
	g := 1.0 / math.Sqrt(1.0+3.0*phiJ*phiJ/(math.Pi*math.Pi))
	e := 1.0 / (1.0 + math.Exp(-g*(mu-muJ)))
	v := 1.0 / (g * g * e * (1.0 - e))

	// Step 4: estimated improvement.
	delta := v * g * (score - e)

	// Step 5: new volatility via the Illinois iteration.
	a := math.Log(sigma * sigma)
	var b float64
	if delta*delta > phi*phi+v {
		b = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for volF(a-k*Tau, delta, phi, v, a) < 0 {
			k++
		}
		b = a - k*Tau
	}

	fA := volF(a, delta, phi, v, a)
	fB := volF(b, delta, phi, v, a)
	for math.Abs(b-a) > epsilon {
		c := a + (a-b)*fA/(fB-fA)
		fC := volF(c, delta, phi, v, a)
		if fC*fB < 0 {
			a = b
			fA = fB
		} else {
			fA /= 2
		}
		b = c
		fB = fC
	}
	newSigma := math.Exp(a / 2)

	// Steps 6-7: new deviation and rating.
	phiStar := math.Sqrt(phi*phi + newSigma*newSigma)
	newPhi := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	newMu := mu + newPhi*newPhi*g*(score-e)

	// Step 8: back to the display scale.
	return newMu*ScaleFactor + DefaultElo, newPhi * ScaleFactor, newSigma
}

// volF is the f(x) whose zero yields the new volatility.
func volF(x, delta, phi, v, a float64) float64 {
	ex := math.Exp(x)
	num := ex * (delta*delta - phi*phi - v - ex)
	denom := 2.0 * (phi*phi + v + ex) * (phi*phi + v + ex)
	return num/denom - (x-a)/(Tau*Tau)
}
