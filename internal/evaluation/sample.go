package evaluation

// SampleDataset returns the GenAuto X1 evaluation set.
func SampleDataset() *Dataset {
	d := NewDataset("genai-auto-eval-v1")
	cases := []TestCase{
		// specifications
		{
			ID:             "spec-001",
			Query:          "What is the engine power of the GenAuto X1?",
			ExpectedAnswer: "The GenAuto X1 has 128 hp with gasoline and 116 hp with ethanol.",
			Category:       "specifications",
			Difficulty:     "easy",
			Tags:           []string{"engine", "power"},
		},
		{
			ID:             "spec-002",
			Query:          "What is the fuel tank capacity?",
			ExpectedAnswer: "The fuel tank capacity is 50 liters (13.2 gallons).",
			Category:       "specifications",
			Difficulty:     "easy",
			Tags:           []string{"fuel", "capacity"},
		},
		{
			ID:             "spec-003",
			Query:          "What are the dimensions of the vehicle?",
			ExpectedAnswer: "Length: 4,199 mm, Width: 1,760 mm, Height: 1,568 mm, Wheelbase: 2,651 mm",
			Category:       "specifications",
			Difficulty:     "medium",
			Tags:           []string{"dimensions"},
		},
		{
			ID:             "spec-004",
			Query:          "What is the towing capacity?",
			ExpectedAnswer: "The towing capacity is 750 kg (1,653 lbs) braked.",
			Category:       "specifications",
			Difficulty:     "easy",
			Tags:           []string{"towing", "capacity"},
		},

		// maintenance
		{
			ID:             "maint-001",
			Query:          "How often should I change the oil?",
			ExpectedAnswer: "Oil should be changed every 10,000 km or 12 months, whichever comes first.",
			Category:       "maintenance",
			Difficulty:     "easy",
			Tags:           []string{"oil", "service"},
		},
		{
			ID:             "maint-002",
			Query:          "What is included in the 20,000 km service?",
			ExpectedAnswer: "The 20,000 km service includes all items from 10,000 km service plus engine air filter replacement, cabin air filter replacement, belt inspection, and wheel alignment and balancing.",
			Category:       "maintenance",
			Difficulty:     "medium",
			Tags:           []string{"service", "maintenance"},
		},
		{
			ID:             "maint-003",
			Query:          "When should the timing belt be replaced?",
			ExpectedAnswer: "The timing belt should be replaced every 100,000 km.",
			Category:       "maintenance",
			Difficulty:     "easy",
			Tags:           []string{"timing belt", "service"},
		},
		{
			ID:             "maint-004",
			Query:          "What type of oil should I use?",
			ExpectedAnswer: "Use SAE 5W-30 with API SN specification. The capacity with filter is 4.2 liters.",
			Category:       "maintenance",
			Difficulty:     "easy",
			Tags:           []string{"oil", "specifications"},
		},

		// troubleshooting
		{
			ID:             "trouble-001",
			Query:          "What should I do if the check engine light comes on?",
			ExpectedAnswer: "First check if the gas cap is loose. Common causes include oxygen sensor issues, catalytic converter problems, and ignition coil failures. If the light is flashing, seek service immediately.",
			Category:       "troubleshooting",
			Difficulty:     "medium",
			Tags:           []string{"check engine", "diagnostics"},
		},
		{
			ID:             "trouble-002",
			Query:          "My brakes are making a squealing noise. What could be wrong?",
			ExpectedAnswer: "Squealing brakes often indicate worn brake pads. Check pad thickness (minimum 3mm). If there's metallic grinding, the rotor may be warped or worn.",
			Category:       "troubleshooting",
			Difficulty:     "medium",
			Tags:           []string{"brakes", "noise"},
		},
		{
			ID:             "trouble-003",
			Query:          "The engine is overheating. What should I do?",
			ExpectedAnswer: "Turn heater to maximum, turn off AC, pull over safely. NEVER open reservoir while engine is hot. Wait at least 30 minutes to cool down. Common causes include low coolant, stuck thermostat, or failed cooling fan.",
			Category:       "troubleshooting",
			Difficulty:     "hard",
			Tags:           []string{"overheating", "emergency"},
		},
		{
			ID:             "trouble-004",
			Query:          "How do I jump start the car?",
			ExpectedAnswer: "Connect red (+) cable to good battery, then to dead battery. Connect black (-) cable to good battery, then to engine ground on the other car. Start good car, wait 2-3 minutes, then try starting the dead car. Remove cables in reverse order.",
			Category:       "troubleshooting",
			Difficulty:     "medium",
			Tags:           []string{"battery", "jump start"},
		},

		// features
		{
			ID:             "feat-001",
			Query:          "How do I activate the Adaptive Cruise Control?",
			ExpectedAnswer: "Accelerate to desired speed (minimum 20 mph), press SET button on steering wheel, adjust following distance. To deactivate, press brake or OFF button.",
			Category:       "features",
			Difficulty:     "medium",
			Tags:           []string{"ACC", "cruise control"},
		},
		{
			ID:             "feat-002",
			Query:          "How does the parking assistant work?",
			ExpectedAnswer: "Activate turn signal toward parking space, drive past at low speed (<12 mph). When 'P' appears, stop, select detected space, release steering wheel and control only pedals. Supports parallel, perpendicular, and angled parking.",
			Category:       "features",
			Difficulty:     "hard",
			Tags:           []string{"parking", "assistant"},
		},
		{
			ID:             "feat-003",
			Query:          "What voice commands are supported?",
			ExpectedAnswer: "Supported commands include: 'Call [contact]', 'Navigate to [address]', 'Play [music/artist]', 'Set temperature to [degrees]'. Activate by saying 'Ok GenAuto' or pressing the steering wheel button.",
			Category:       "features",
			Difficulty:     "medium",
			Tags:           []string{"voice", "infotainment"},
		},

		// safety
		{
			ID:             "safety-001",
			Query:          "How many airbags does the car have?",
			ExpectedAnswer: "The vehicle has 6 airbags: 2 frontal (driver and passenger), 2 side (driver and passenger), and 2 curtain (head protection).",
			Category:       "safety",
			Difficulty:     "easy",
			Tags:           []string{"airbags", "safety"},
		},
		{
			ID:             "safety-002",
			Query:          "What should I do in case of an accident?",
			ExpectedAnswer: "Stay calm, turn on hazard lights, set up warning triangle 100 ft from vehicle, check for injuries, call 911, do not move injured persons except in case of fire risk, file police report.",
			Category:       "safety",
			Difficulty:     "hard",
			Tags:           []string{"accident", "emergency"},
		},
		{
			ID:             "safety-003",
			Query:          "What child seat recommendations are there?",
			ExpectedAnswer: "Under 1 year: rear-facing infant seat. 1-4 years: forward-facing child seat. 4-8 years: booster seat with back. 8-12 years: booster seat. The vehicle has ISOFIX anchor points on outer rear seats.",
			Category:       "safety",
			Difficulty:     "medium",
			Tags:           []string{"child seat", "safety"},
		},

		// faq
		{
			ID:             "faq-001",
			Query:          "What is the warranty period?",
			ExpectedAnswer: "The GenAuto X1 has a 3-year or 60,000-mile warranty (whichever comes first), valid for manufacturing defects. Wear items like brake pads, tires, and wiper blades are not covered.",
			Category:       "faq",
			Difficulty:     "easy",
			Tags:           []string{"warranty"},
		},
		{
			ID:             "faq-002",
			Query:          "What is the correct tire pressure?",
			ExpectedAnswer: "Front: 32 psi, Rear: 32 psi for normal load. For maximum load: 35 psi.",
			Category:       "faq",
			Difficulty:     "easy",
			Tags:           []string{"tires", "pressure"},
		},
	}
	if err := d.Add(cases...); err != nil {
		panic(err)
	}
	return d
}
