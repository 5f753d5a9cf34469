package gsw

import "math"

const (
	// CP0 is the "specific heat" used to define Conservative Temperature (J/(kg K)).
	CP0 = 3991.86795711963
	// T0 is the Celsius zero point (K).
	T0 = 273.15
)

// CTFromPT computes Conservative Temperature (°C) from Absolute Salinity
// (g/kg) and potential temperature referenced to 0 dbar (°C).
func CTFromPT(sa, pt float64) float64 {
	x2 := sfac * sa
	x := math.Sqrt(x2)
	y := pt * 0.025

	potEnthalpy := 61.01362420681071 + y*(168776.46138048015+
		y*(-2735.2785605119625+y*(2574.2164453821433+
			y*(-1536.6644434977543+y*(545.7340497931629+
				(-50.91091728474331-18.30489878927802*y)*
					y))))) + x2*(268.5520265845071+y*(-12019.028203559312+
		y*(3734.858026725145+y*(-2046.7671145057618+
			y*(465.28655623826234+(-0.6370820302376359-
				10.650848542359153*y)*y))))+
		x*(937.2099110620707+y*(588.1802812170108+
			y*(248.39476522971285+(-3.871557904936333-
				2.6268019854268356*y)*y))+
			x*(-1687.914374187449+x*(246.9598888781377+
				x*(123.59576582457964-48.5891069025409*x))+
				y*(936.3206544460336+
					y*(-942.7827304544439+y*(369.4389437509002+
						(-33.83664947895248-9.987880382780322*y)*y))))))

	return potEnthalpy / CP0
}

// CTFromT computes Conservative Temperature (°C) from Absolute Salinity
// (g/kg), in-situ temperature (°C) and sea pressure (dbar).
func CTFromT(sa, t, p float64) float64 {
	if math.IsNaN(sa) || math.IsNaN(t) || math.IsNaN(p) {
		return math.NaN()
	}
	return CTFromPT(sa, PT0FromT(sa, t, p))
}

// PT0FromT computes potential temperature (°C) referenced to 0 dbar from
// Absolute Salinity (g/kg), in-situ temperature (°C) and sea pressure
// (dbar). It matches entropy at the surface to the in-situ entropy with two
// modified Newton-Raphson steps from a polynomial first guess, which is
// machine precision over the oceanographic range.
func PT0FromT(sa, t, p float64) float64 {
	s1 := sa / UPS

	pt0 := t + p*(8.65483913395442e-6-
		s1*1.41636299744881e-6-
		p*7.38286467135737e-9+
		t*(-8.38241357039698e-6+
			s1*2.83933368585534e-8+
			t*1.77803965218656e-8+
			p*1.71155619208233e-10))

	dentropyDT := CP0 / ((T0 + pt0) * (1 - 0.05*(1-sa/SSO)))
	trueEntropy := EntropyPart(sa, t, p)

	for range 2 {
		prev := pt0
		dentropy := entropyPartZeroP(sa, prev) - trueEntropy
		pt0 = prev - dentropy/dentropyDT
		mid := 0.5 * (pt0 + prev)
		dentropyDT = -gibbsPT0PT0(sa, mid)
		pt0 = prev - dentropy/dentropyDT
	}
	return pt0
}

// EntropyPart is specific entropy (J/(kg K)) less the terms that are a
// function of Absolute Salinity alone, taken from the temperature
// derivative of the Gibbs function of seawater.
func EntropyPart(sa, t, p float64) float64 {
	x2 := sfac * sa
	x := math.Sqrt(x2)
	y := t * 0.025
	z := p * 1e-4

	g03 := z*(-270.983805184062+
		z*(776.153611613101+z*(-196.51255088122+(28.9796526294175-2.13290083518327*z)*z))) +
		y*(-24715.571866078+z*(2910.0729080936+
			z*(-1513.116771538718+z*(546.959324647056+z*(-111.1208127634436+8.68841343834394*z))))+
			y*(2210.2236124548363+z*(-2017.52334943521+
				z*(1498.081172457456+z*(-718.6359919632359+(146.4037555781616-4.9892131862671505*z)*z)))+
				y*(-592.743745734632+z*(1591.873781627888+
					z*(-1207.261522487504+(608.785486935364-105.4993508931208*z)*z))+
					y*(290.12956292128547+z*(-973.091553087975+
						z*(602.603274510125+z*(-276.361526170076+32.40953340386105*z)))+
						y*(-113.90630790850321+y*(21.35571525415769-67.41756835751434*z)+
							z*(381.06836198507096+z*(-133.7383902842754+49.023632509086724*z)))))))

	g08 := x2 * (z*(729.116529735046+
		z*(-343.956902961561+z*(124.687671116248+z*(-31.656964386073+7.04658803315449*z)))) +
		x*(x*(y*(-137.1145018408982+y*(148.10030845687618+y*(-68.5590309679152+12.4848504784754*y)))-
			22.6683558512829*z)+z*(-175.292041186547+(83.1923927801819-29.483064349429*z)*z)+
			y*(-86.1329351956084+z*(766.116132004952+z*(-108.3834525034224+51.2796974779828*z))+
				y*(-30.0682112585625-1380.9597954037708*z+y*(3.50240264723578+938.26075044542*z)))) +
		y*(1760.062705994408+y*(-675.802947790203+
			y*(365.7041791005036+y*(-108.30162043765552+12.78101825083098*y)+
				z*(-1190.914967948748+(298.904564555024-145.9491676006352*z)*z))+
			z*(2082.7344423998043+z*(-614.668925894709+(340.685093521782-33.3848202979239*z)*z)))+
			z*(-1721.528607567954+z*(674.819060538734+
				z*(-356.629112415276+(88.4080716616-15.84003094423364*z)*z)))))

	return -(g03 + g08) * 0.025
}

// entropyPartZeroP is EntropyPart at zero sea pressure.
func entropyPartZeroP(sa, pt0 float64) float64 {
	x2 := sfac * sa
	x := math.Sqrt(x2)
	y := pt0 * 0.025

	g03 := y * (-24715.571866078 + y*(2210.2236124548363+
		y*(-592.743745734632+y*(290.12956292128547+
			y*(-113.90630790850321+y*21.35571525415769)))))

	g08 := x2 * (x*(x*(y*(-137.1145018408982+y*(148.10030845687618+
		y*(-68.5590309679152+12.4848504784754*y))))+
		y*(-86.1329351956084+y*(-30.0682112585625+y*3.50240264723578))) +
		y*(1760.062705994408+y*(-675.802947790203+
			y*(365.7041791005036+y*(-108.30162043765552+12.78101825083098*y)))))

	return -(g03 + g08) * 0.025
}

// gibbsPT0PT0 is the second temperature derivative of the Gibbs function at
// zero sea pressure (J/(kg K²)).
func gibbsPT0PT0(sa, pt0 float64) float64 {
	x2 := sfac * sa
	x := math.Sqrt(x2)
	y := pt0 * 0.025

	g03 := -24715.571866078 +
		y*(4420.4472249096725+
			y*(-1778.231237203896+
				y*(1160.5182516851419+
					y*(-569.531539542516+y*128.13429152494615))))

	g08 := x2 * (1760.062705994408 + x*(-86.1329351956084+
		x*(-137.1145018408982+y*(296.20061691375236+
			y*(-205.67709290374563+49.9394019139016*y)))+
		y*(-60.136422517125+y*10.50720794170734)) +
		y*(-1351.605895580406+y*(1097.1125373015109+
			y*(-433.20648175062206+63.905091254154904*y))))

	return (g03 + g08) * 0.000625
}
