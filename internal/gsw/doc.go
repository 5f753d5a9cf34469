// Package gsw implements the subset of the TEOS-10 Gibbs SeaWater (GSW)
// toolbox needed to turn CTD readings into in-situ density.
//
// # Chain
//
//	C, t, p  --SPFromC-->  SP          (PSS-78, Hill et al. 1986 below SP 2)
//	SP, SAAR --SAFromSP--> SA          (reference composition, Baltic branch)
//	SA, t, p --CTFromT-->  CT          (PT0FromT, then CTFromPT)
//	SA, CT, p --Rho-->     rho         (75-term polynomial, Roquet et al. 2015)
//
// Units follow the GSW conventions: conductivity in mS/cm, temperatures in
// degrees Celsius (ITS-90), sea pressure in dbar, salinities in g/kg (SA) or
// dimensionless (SP), density in kg/m³.
//
// Functions return NaN when an input falls outside the domain of the
// underlying fit, mirroring the GSW invalid-value convention. Callers decide
// whether a NaN is a row-level skip or a hard failure.
//
// # Absolute Salinity Anomaly Ratio
//
// The global SAAR atlas is not bundled. SAFromSP takes the ratio as an
// argument so the caller can supply it from any spatial source (a gridded
// table, a constant, or zero for the reference-composition approximation).
//
// # Conservative Temperature
//
// CTFromT follows the Gibbs-function route: PT0FromT finds the surface
// temperature with the same specific entropy as the in-situ parcel, and
// CTFromPT maps that potential temperature to potential enthalpy divided by
// CP0.
package gsw
