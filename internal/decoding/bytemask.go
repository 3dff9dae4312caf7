package decoding

// byteMaskPlan zips the byte mask with the sensors of the device in
// declaration order. Every value is the plain unsigned integer of its bytes.
func byteMaskPlan(dev Device, c ByteMaskConfig) (Plan, error) {
	if len(c.ByteMask) == 0 {
		return Plan{}, newError(ErrConfiguration, "profile '%s' requires a valid byteMask", c.Name)
	}

	if len(dev.Sensors) < len(c.ByteMask) {
		return Plan{}, newError(ErrConfiguration, "box requires at least %d sensors", len(c.ByteMask))
	}

	plan := Plan{
		Elements: make([]PlanElement, 0, len(c.ByteMask)),
	}
	for i, n := range c.ByteMask {
		if n <= 0 || n > 4 {
			return Plan{}, newError(ErrConfiguration, "byteMask entry %d must be between 1 and 4 bytes", i)
		}

		plan.Elements = append(plan.Elements, PlanElement{
			Bytes:    n,
			SensorID: dev.Sensors[i].ID,
			Value:    uintValue,
		})
	}

	return plan, nil
}

func uintValue(b []byte) []float64 {
	return []float64{float64(BytesToInt(b))}
}
