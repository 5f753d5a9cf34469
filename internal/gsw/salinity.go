package gsw

import "math"

const (
	// C3515 is the conductivity of SSW at SP=35, t68=15 °C, p=0 (mS/cm).
	C3515 = 42.9140
	// SSO is the Standard Ocean Reference Salinity (g/kg).
	SSO = 35.16504
	// UPS converts Practical Salinity to Reference Salinity.
	UPS = SSO / 35.0
)

// PSS-78 coefficients.
var (
	pssA = [6]float64{0.0080, -0.1692, 25.3851, 14.0941, -7.0261, 2.7081}
	pssB = [6]float64{0.0005, -0.0056, -0.0066, -0.0375, 0.0636, -0.0144}
	pssC = [5]float64{0.6766097, 2.00564e-2, 1.104259e-4, -6.9698e-7, 1.0031e-9}
)

const (
	pssD1 = 3.426e-2
	pssD2 = 4.464e-4
	pssD3 = 4.215e-1
	pssD4 = -3.107e-3
	pssE1 = 2.070e-5
	pssE2 = -6.370e-10
	pssE3 = 3.989e-15
	pssK  = 0.0162
)

// SPFromC computes Practical Salinity from conductivity c (mS/cm), in-situ
// temperature t (°C, ITS-90) and sea pressure p (dbar) using PSS-78. Values
// of SP below 2 use the Hill et al. (1986) extension scaled so the result is
// continuous at SP=2. Returns NaN for non-physical inputs.
func SPFromC(c, t, p float64) float64 {
	t68 := t * 1.00024
	ft68 := (t68 - 15) / (1 + pssK*(t68-15))

	r := c / C3515
	rtLC := pssC[0] + (pssC[1]+(pssC[2]+(pssC[3]+pssC[4]*t68)*t68)*t68)*t68
	rp := 1 + (p*(pssE1+pssE2*p+pssE3*p*p))/
		(1+pssD1*t68+pssD2*t68*t68+(pssD3+pssD4*t68)*r)
	rt := r / (rp * rtLC)
	if rt < 0 || math.IsNaN(rt) {
		return math.NaN()
	}

	rtx := math.Sqrt(rt)
	sp := pssPoly(pssA, rtx) + ft68*pssPoly(pssB, rtx)

	if sp < 2 {
		x := 400 * rt
		sqrty := 10 * rtx
		part1 := 1 + x*(1.5+x)
		part2 := 1 + sqrty*(1+sqrty*(1+sqrty))
		spHillRaw := sp - pssA[0]/part1 - pssB[0]*ft68/part2
		sp = hillRatioAtSP2(t) * spHillRaw
	}

	if sp < 0 {
		return math.NaN()
	}
	return sp
}

// hillRatioAtSP2 is the ratio of the PSS-78 salinity to the Hill et al.
// salinity at SP=2, used to make the low-salinity extension continuous.
func hillRatioAtSP2(t float64) float64 {
	g := [8]float64{
		2.641463563366498e-1, 2.007883247811176e-4, -4.107694432853053e-6,
		8.401670882091225e-8, -1.711392021989210e-9, 1.893485549738888e-11,
		-1.107366838249722e-13, 3.385434543373788e-16,
	}
	const sp2 = 2.0

	t68 := t * 1.00024
	ft68 := (t68 - 15) / (1 + pssK*(t68-15))

	rtx0 := 0.0
	for i := len(g) - 1; i >= 0; i-- {
		rtx0 = rtx0*t68 + g[i]
	}

	dspDrtx := pssDeriv(pssA, rtx0) + ft68*pssDeriv(pssB, rtx0)
	spEst := pssPoly(pssA, rtx0) + ft68*pssPoly(pssB, rtx0)

	// One modified Newton-Raphson step.
	rtx := rtx0 - (spEst-sp2)/dspDrtx
	rtxm := 0.5 * (rtx + rtx0)
	dspDrtx = pssDeriv(pssA, rtxm) + ft68*pssDeriv(pssB, rtxm)
	rtx = rtx0 - (spEst-sp2)/dspDrtx

	rt := rtx * rtx
	x := 400 * rt
	sqrty := 10 * rtx
	part1 := 1 + x*(1.5+x)
	part2 := 1 + sqrty*(1+sqrty*(1+sqrty))
	spHillRawAtSP2 := sp2 - pssA[0]/part1 - pssB[0]*ft68/part2

	return sp2 / spHillRawAtSP2
}

func pssPoly(co [6]float64, x float64) float64 {
	return co[0] + (co[1]+(co[2]+(co[3]+(co[4]+co[5]*x)*x)*x)*x)*x
}

func pssDeriv(co [6]float64, x float64) float64 {
	return co[1] + (2*co[2]+(3*co[3]+(4*co[4]+5*co[5]*x)*x)*x)*x
}

// SAFromSP computes Absolute Salinity (g/kg) from Practical Salinity given
// the Absolute Salinity Anomaly Ratio at the sample location. Positions
// inside the Baltic Sea use the Feistel et al. (2010) Baltic relation and
// ignore saar.
func SAFromSP(sp, saar, lon, lat float64) float64 {
	if math.IsNaN(sp) || math.IsNaN(saar) {
		return math.NaN()
	}
	if sa, ok := SAFromSPBaltic(sp, lon, lat); ok {
		return sa
	}
	return UPS * sp * (1 + saar)
}

// SRFromSP computes Reference Salinity (g/kg) from Practical Salinity.
func SRFromSP(sp float64) float64 {
	return UPS * sp
}

// Baltic Sea polygon, longitudes east of Greenwich.
var (
	balticLeftLat  = []float64{50.0, 59.0, 69.0}
	balticLeftLon  = []float64{12.6, 7.0, 26.0}
	balticRightLat = []float64{50.0, 69.0}
	balticRightLon = []float64{45.0, 26.0}
)

// SAFromSPBaltic returns Absolute Salinity for a position inside the Baltic
// Sea. The boolean is false when the position lies outside the Baltic.
func SAFromSPBaltic(sp, lon, lat float64) (float64, bool) {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	if !(balticLeftLon[1] < lon && lon < balticRightLon[0] &&
		balticLeftLat[0] < lat && lat < balticLeftLat[2]) {
		return 0, false
	}

	xxLeft := interp1(balticLeftLat, balticLeftLon, lat)
	xxRight := interp1(balticRightLat, balticRightLon, lat)
	if xxLeft <= lon && lon <= xxRight {
		return ((SSO-0.087)/35.0)*sp + 0.087, true
	}
	return 0, false
}

// interp1 linearly interpolates y at x over ascending knots xs.
func interp1(xs, ys []float64, x float64) float64 {
	if x <= xs[0] {
		return ys[0]
	}
	last := len(xs) - 1
	if x >= xs[last] {
		return ys[last]
	}
	for i := 0; i < last; i++ {
		if x <= xs[i+1] {
			f := (x - xs[i]) / (xs[i+1] - xs[i])
			return ys[i] + f*(ys[i+1]-ys[i])
		}
	}
	return ys[last]
}
