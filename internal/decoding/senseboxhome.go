package decoding

import (
	"math"
	"math/big"
)

type homeTransform struct {
	bytes int
	value ValueFunc
}

var (
	homeTemperature = homeTransform{2, func(b []byte) []float64 {
		return []float64{round1(float64(BytesToInt(b))/771 - 18)}
	}}
	homeHumidity = homeTransform{2, func(b []byte) []float64 {
		return []float64{round1(float64(BytesToInt(b)) / 1e2)}
	}}
	homePressure = homeTransform{2, func(b []byte) []float64 {
		return []float64{round1(float64(BytesToInt(b))/81.9187 + 300)}
	}}
	homeModMultiplier = homeTransform{3, func(b []byte) []float64 {
		return []float64{modMultiplier(b)}
	}}
	homeTenth = homeTransform{2, func(b []byte) []float64 {
		return []float64{round1(float64(BytesToInt(b)) / 10)}
	}}
	homeInteger   = homeTransform{2, uintValue}
	homeRainGauge = homeTransform{2, func(b []byte) []float64 {
		return []float64{float64(BytesToInt(b)) / 10}
	}}
)

// homePhenomena is the ordered phenomenon table of the sensebox/home profile.
// The order defines the byte layout of the payload.
var homePhenomena = []struct {
	Phenomenon
	transform homeTransform
}{
	{Phenomenon{"temperature", titles("temperatur", "temperature")}, homeTemperature},
	{Phenomenon{"humidity", titles("rel. luftfeuchte", "luftfeuchtigkeit", "humidity")}, homeHumidity},
	{Phenomenon{"pressure", titles("luftdruck", "druck", "pressure", "air pressure")}, homePressure},
	{Phenomenon{"lightintensity", titles("licht", "helligkeit", "beleuchtungsstärke", "einstrahlung", "light", "light intensity")}, homeModMultiplier},
	{Phenomenon{"uvlight", titles("uv", "uv-a", "uv-intensität", "uv-intensity")}, homeModMultiplier},
	{Phenomenon{"pm10", titles("pm10", "pm 10")}, homeTenth},
	{Phenomenon{"pm25", titles("pm2.5", "pm 2.5")}, homeTenth},
	{Phenomenon{"soiltemperature", titles("soiltemperature", "soil temperature", "temperature soil", "bodentemperatur", "boden temperatur", "temperatur boden")}, homeTemperature},
	{Phenomenon{"soilmoisture", titles("soilmoisture", "soil moisture", "moisture soil", "bodenfeuchte", "boden feuchte", "feuchte boden", "bodenfeuchtigkeit", "boden feuchtigkeit", "feuchtigkeit boden")}, homeHumidity},
	{Phenomenon{"soundlevel", titles("soundlevel", "sound level", "lautstärke", "schallpegel", "schall pegel")}, homeTenth},
	{Phenomenon{"bmetemperature", titles("lufttemperatur")}, homeTemperature},
	{Phenomenon{"bmehumidity", titles("luftfeuchte")}, homeHumidity},
	{Phenomenon{"bmepressure", titles("atm. luftdruck")}, homePressure},
	{Phenomenon{"bmevoc", titles("VOC")}, homeModMultiplier},
	{Phenomenon{"windspeed", titles("windgeschwindigkeit", "wind weschwindigkeit", "windspeed", "wind speed")}, homeTenth},
	{Phenomenon{"co2", titles("co2", "CO₂", "co 2")}, homeInteger},
	{Phenomenon{"rg15_total", titles("Niederschlag (gesamt)")}, homeRainGauge},
	{Phenomenon{"rg15_event", titles("Niederschlag (letztes Ereignis)")}, homeRainGauge},
	{Phenomenon{"rg15_intensity", titles("Regenintensität")}, homeRainGauge},
}

func senseBoxHomePlan(dev Device) (Plan, error) {
	phenomena := make([]Phenomenon, len(homePhenomena))
	for i := range homePhenomena {
		phenomena[i] = homePhenomena[i].Phenomenon
	}

	ids := MatchSensors(dev.Sensors, phenomena)
	if len(ids) == 0 {
		return Plan{}, newError(ErrSensorResolution, "box has no sensors matching the sensebox/home profile")
	}

	plan := Plan{Strict: true}
	for _, ph := range homePhenomena {
		id, ok := ids[ph.Name]
		if !ok {
			continue
		}

		plan.Elements = append(plan.Elements, PlanElement{
			Bytes:    ph.transform.bytes,
			SensorID: id,
			Value:    ph.transform.value,
		})
	}

	return plan, nil
}

var (
	ten  = big.NewRat(10, 1)
	half = big.NewRat(1, 2)
)

// round1 rounds the exact binary value of v to one decimal place, half away
// from zero, and returns the float64 nearest to the rounded decimal.
// 0.15 (stored as 0.1499...) gives 0.1, 0.25 gives 0.3.
func round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}

	neg := math.Signbit(v)
	r := new(big.Rat).SetFloat64(math.Abs(v))
	r.Mul(r, ten)

	n := new(big.Int).Quo(r.Num(), r.Denom())
	if r.Sub(r, new(big.Rat).SetInt(n)).Cmp(half) >= 0 {
		n.Add(n, big.NewInt(1))
	}

	out, _ := new(big.Rat).SetFrac(n, big.NewInt(10)).Float64()
	if neg {
		return -out
	}
	return out
}
