package gsw

import "math"

const (
	// sfac is 1/(40*UPS).
	sfac = 0.0248826675584615
	// offset is deltaS*sfac, with deltaS = 24 g/kg.
	offset = 5.971840214030754e-1
)

// 75-term specific volume coefficients, vIJK multiplying ys^I xs^J z^K.
const (
	v000 = 1.0769995862e-3
	v001 = -6.0799143809e-5
	v002 = 9.9856169219e-6
	v003 = -1.1309361437e-6
	v004 = 1.0531153080e-7
	v005 = -1.2647261286e-8
	v006 = 1.9613503930e-9
	v010 = -3.1038981976e-4
	v011 = 2.4262468747e-5
	v012 = -5.8484432984e-7
	v013 = 3.6310188515e-7
	v014 = -1.1147125423e-7
	v020 = 6.6928067038e-4
	v021 = -3.4792460974e-5
	v022 = -4.8122251597e-6
	v023 = 1.6746303780e-8
	v030 = -8.5047933937e-4
	v031 = 3.7470777305e-5
	v032 = 4.9263106998e-6
	v040 = 5.8086069943e-4
	v041 = -1.7322218612e-5
	v042 = -1.7811974727e-6
	v050 = -2.1092370507e-4
	v051 = 3.0927427253e-6
	v060 = 3.1932457305e-5
	v100 = -1.5649734675e-5
	v101 = 1.8505765429e-5
	v102 = -1.1736386731e-6
	v103 = -3.6527006553e-7
	v104 = 3.1454099902e-7
	v110 = 3.5009599764e-5
	v111 = -9.5677088156e-6
	v112 = -5.5699154557e-6
	v113 = -2.7295696237e-7
	v120 = -4.3592678561e-5
	v121 = 1.1100834765e-5
	v122 = 5.4620748834e-6
	v130 = 3.4532461828e-5
	v131 = -9.8447117844e-6
	v132 = -1.3544185627e-6
	v140 = -1.1959409788e-5
	v141 = 2.5909225260e-6
	v150 = 1.3864594581e-6
	v200 = 2.7762106484e-5
	v201 = -1.1716606853e-5
	v202 = 2.1305028740e-6
	v203 = 2.8695905159e-7
	v210 = -3.7435842344e-5
	v211 = -2.3678308361e-7
	v212 = 3.9137387080e-7
	v220 = 3.5907822760e-5
	v221 = 2.9283346295e-6
	v222 = -6.5731104067e-7
	v230 = -1.8698584187e-5
	v231 = -4.8826139200e-7
	v240 = 3.8595339244e-6
	v300 = -1.6521159259e-5
	v301 = 7.9279656173e-6
	v302 = -4.6132540037e-7
	v310 = 2.4141479483e-5
	v311 = -3.4558773655e-6
	v312 = 7.7618888092e-9
	v320 = -1.4353633048e-5
	v321 = 3.1655306078e-7
	v330 = 2.2863324556e-6
	v400 = 6.9111322702e-6
	v401 = -3.4102187482e-6
	v402 = -6.3352916514e-8
	v410 = -8.7595873154e-6
	v411 = 1.2956717783e-6
	v420 = 4.3703680598e-6
	v500 = -8.0539615540e-7
	v501 = 5.0736766814e-7
	v510 = -3.3052758900e-7
	v600 = 2.0543094268e-7
)

// Specvol computes specific volume (m³/kg) from Absolute Salinity (g/kg),
// Conservative Temperature (°C) and sea pressure (dbar) using the 75-term
// polynomial of Roquet et al. (2015).
func Specvol(sa, ct, p float64) float64 {
	xs := math.Sqrt(sfac*sa + offset)
	ys := ct * 0.025
	z := p * 1e-4

	return v000 +
		xs*(v010+xs*(v020+xs*(v030+xs*(v040+xs*(v050+v060*xs))))) +
		ys*(v100+xs*(v110+xs*(v120+xs*(v130+xs*(v140+v150*xs))))+
			ys*(v200+xs*(v210+xs*(v220+xs*(v230+v240*xs)))+
				ys*(v300+xs*(v310+xs*(v320+v330*xs))+
					ys*(v400+xs*(v410+v420*xs)+
						ys*(v500+v510*xs+v600*ys))))) +
		z*(v001+xs*(v011+xs*(v021+xs*(v031+xs*(v041+v051*xs))))+
			ys*(v101+xs*(v111+xs*(v121+xs*(v131+v141*xs)))+
				ys*(v201+xs*(v211+xs*(v221+v231*xs))+
					ys*(v301+xs*(v311+v321*xs)+
						ys*(v401+v411*xs+v501*ys))))+
			z*(v002+xs*(v012+xs*(v022+xs*(v032+v042*xs)))+
				ys*(v102+xs*(v112+xs*(v122+v132*xs))+
					ys*(v202+xs*(v212+v222*xs)+
						ys*(v302+v312*xs+v402*ys)))+
				z*(v003+xs*(v013+v023*xs)+
					ys*(v103+v113*xs+v203*ys)+
					z*(v004+v014*xs+v104*ys+
						z*(v005+v006*z)))))
}

// Rho computes in-situ density (kg/m³) from Absolute Salinity (g/kg),
// Conservative Temperature (°C) and sea pressure (dbar).
func Rho(sa, ct, p float64) float64 {
	return 1 / Specvol(sa, ct, p)
}
