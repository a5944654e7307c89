package rules

import "github.com/opensource-finance/redflag/internal/domain"

// DefaultVersion is the version of the built-in ruleset.
const DefaultVersion = "2024.1"

// Indicator ids in the built-in ruleset.
const (
	IndicatorLowProfitMargin       = "low_profit_margin"
	IndicatorHighExpenseRatio      = "high_expense_ratio"
	IndicatorHighMotorCosts        = "high_motor_costs"
	IndicatorLargeMileageClaim     = "large_mileage_claim"
	IndicatorMileageWithMotorCosts = "mileage_with_motor_costs"
	IndicatorHomeOffice            = "disproportionate_home_office"
	IndicatorHighTravel            = "high_travel_subsistence"
	IndicatorConsecutiveLosses     = "consecutive_losses"
	IndicatorDeclaredLoss          = "declared_loss"
	IndicatorOtherIncome           = "other_income"
	IndicatorForeignIncome         = "foreign_income"
	IndicatorCapitalAllowances     = "capital_allowances"
	IndicatorLossCarryForward      = "loss_carry_forward"
)

// Note ids in the built-in ruleset.
const (
	NoteHighProfitMargin = "high_profit_margin"
	NoteRoundedFigures   = "rounded_figures"
	NotePHVMotorCosts    = "phv_motor_costs"
	NotePHVHighMileage   = "phv_high_mileage"
	NoteCourierMotor     = "courier_motor_costs"
	NoteCISDeductions    = "cis_deductions"
	NoteRetailMargin     = "retail_margin"
	NoteConsultantMargin = "consultant_margin"
)

// DefaultRuleset returns the built-in rule and industry tables.
// Each call returns a fresh value.
func DefaultRuleset() *Ruleset {
	return &Ruleset{
		Version:         DefaultVersion,
		DefaultIndustry: domain.DefaultIndustry,
		Mileage: domain.MileageRates{
			FirstRate:      0.45,
			FirstBandMiles: 10000,
			AfterRate:      0.25,
		},
		RoundFigureUnit: 500,
		Thresholds: map[string]float64{
			"min_profit_margin":              0.10,
			"max_expense_ratio":              0.70,
			"max_motor_ratio":                0.20,
			"max_mileage_method_motor_ratio": 0.10,
			"large_mileage_miles":            10000,
			"max_mileage_value_ratio":        0.50,
			"max_home_office_ratio":          0.08,
			"max_travel_ratio":               0.20,
			"high_profit_margin":             0.50,
			"min_rounded_figures":            3,
			"phv_high_mileage_miles":         25000,
		},
		Indicators: defaultIndicators(),
		Notes:      defaultNotes(),
		Industries: defaultIndustries(),
	}
}

func defaultIndicators() []domain.Indicator {
	return []domain.Indicator{
		{
			ID:                IndicatorLowProfitMargin,
			Name:              "Low profit margin",
			Weight:            domain.WeightMedium,
			Condition:         `profit > 0.0 && profit_ratio < min_profit_margin`,
			Explanation:       "Your declared profit is a small share of turnover. Thin margins can suggest under-reported income or over-claimed costs.",
			HMRCContext:       "HMRC compares margins against sector benchmarks. Returns well below the norm for a trade are more likely to be queried.",
			DocumentationTips: "Keep a reconciliation of takings to bank deposits and be ready to explain any one-off costs that reduced profit this year.",
		},
		{
			ID:                IndicatorHighExpenseRatio,
			Name:              "High expense ratio",
			Weight:            domain.WeightHigh,
			Condition:         `expense_ratio > max_expense_ratio`,
			Explanation:       "Total expenses are a high proportion of turnover for your trade.",
			HMRCContext:       "Expense-to-turnover ratio is one of the first figures HMRC risk models look at. Only costs incurred wholly and exclusively for the business are allowable.",
			DocumentationTips: "Keep receipts and invoices for every claimed cost and separate out any private-use element before claiming.",
		},
		{
			ID:                IndicatorHighMotorCosts,
			Name:              "High motor costs",
			Weight:            domain.WeightMedium,
			Condition:         `motor_ratio > max_motor_ratio`,
			Explanation:       "Vehicle costs are a large share of turnover.",
			HMRCContext:       "HMRC expects a private-use adjustment on vehicle costs unless the vehicle is used only for business.",
			DocumentationTips: "Keep a mileage log that separates business and private journeys, and fuel and repair receipts.",
		},
		{
			ID:                IndicatorLargeMileageClaim,
			Name:              "Large mileage claim",
			Weight:            domain.WeightMedium,
			Condition:         `method == "mileage" && (mileage_claimed > large_mileage_miles || mileage_value_ratio > max_mileage_value_ratio)`,
			Explanation:       "A large simplified mileage claim relative to your activity, without actual-cost detail.",
			HMRCContext:       "Approved mileage allowance payments need a contemporaneous log of business journeys to support them.",
			DocumentationTips: "Record date, destination, purpose and miles for each business journey. Diary and calendar entries help corroborate the log.",
		},
		{
			ID:                IndicatorMileageWithMotorCosts,
			Name:              "Mileage claim alongside motor costs",
			Weight:            domain.WeightMedium,
			Condition:         `method == "mileage" && motor_ratio > max_mileage_method_motor_ratio`,
			Explanation:       "You claimed simplified mileage and also significant motor costs.",
			HMRCContext:       "Simplified mileage replaces fuel, insurance, repairs and servicing. Claiming both for the same vehicle is a common double claim.",
			DocumentationTips: "Check that motor costs relate to a different vehicle or to items the mileage rate does not cover, such as parking and tolls.",
		},
		{
			ID:                IndicatorHomeOffice,
			Name:              "Disproportionate home office claim",
			Weight:            domain.WeightLow,
			Condition:         `home_office_ratio > max_home_office_ratio`,
			Explanation:       "Use-of-home costs are high relative to turnover.",
			HMRCContext:       "Use-of-home claims must be apportioned by business use of rooms and time, or use the flat rate.",
			DocumentationTips: "Keep household bills and a note of how the business proportion was calculated.",
		},
		{
			ID:                IndicatorHighTravel,
			Name:              "High travel and subsistence",
			Weight:            domain.WeightMedium,
			Condition:         `travel_ratio > max_travel_ratio`,
			Explanation:       "Travel and subsistence costs are a large share of turnover.",
			HMRCContext:       "Ordinary commuting and everyday meals are not allowable. Subsistence is only allowable on business journeys away from the normal place of work.",
			DocumentationTips: "Keep receipts together with the business reason for each trip.",
		},
		{
			ID:                IndicatorConsecutiveLosses,
			Name:              "Consecutive losses",
			Weight:            domain.WeightHigh,
			Condition:         `loss_this_year && loss_last_year`,
			Explanation:       "The business has declared a loss this year and last year.",
			HMRCContext:       "Repeated losses raise questions about whether the activity is carried on commercially with a view to profit, which affects loss relief.",
			DocumentationTips: "Keep a business plan or forecast showing how the business expects to become profitable.",
		},
		{
			ID:                IndicatorDeclaredLoss,
			Name:              "Declared loss",
			Weight:            domain.WeightMedium,
			Condition:         `profit <= 0.0 || loss_this_year`,
			Explanation:       "The figures show a loss or break-even result for the year.",
			HMRCContext:       "Loss claims reduce tax on other income and are checked more often than profitable returns.",
			DocumentationTips: "Keep evidence of the costs that caused the loss and of any loss relief claimed.",
		},
		{
			ID:                IndicatorOtherIncome,
			Name:              "Other income sources",
			Weight:            domain.WeightLow,
			Condition:         `has_other_income || other_income_total > 0.0`,
			Explanation:       "You have income from sources other than self-employment.",
			HMRCContext:       "HMRC matches employment, rental, dividend and interest income against third-party data.",
			DocumentationTips: "Keep P60s, rental statements, dividend vouchers and bank interest certificates.",
		},
		{
			ID:                IndicatorForeignIncome,
			Name:              "Foreign income",
			Weight:            domain.WeightMedium,
			Condition:         `has_foreign_income || foreign_income > 0.0`,
			Explanation:       "You declared income from outside the UK.",
			HMRCContext:       "Foreign income is subject to information exchange under the Common Reporting Standard and is a focus area for HMRC.",
			DocumentationTips: "Keep overseas bank statements and records of any foreign tax paid for relief claims.",
		},
		{
			ID:                IndicatorCapitalAllowances,
			Name:              "Capital allowances claimed",
			Weight:            domain.WeightLow,
			Condition:         `has_capital_allowances || capital_allowances_amount > 0.0`,
			Explanation:       "You claimed capital allowances on equipment or vehicles.",
			HMRCContext:       "Allowances must match qualifying expenditure and the correct pool or annual investment allowance.",
			DocumentationTips: "Keep purchase invoices and a capital allowances computation for each asset.",
		},
		{
			ID:                IndicatorLossCarryForward,
			Name:              "Loss carried forward",
			Weight:            domain.WeightLow,
			Condition:         `has_loss_carry_forward || loss_carry_forward_amount > 0.0`,
			Explanation:       "You are using losses brought forward from earlier years.",
			HMRCContext:       "Brought-forward losses must agree with earlier returns.",
			DocumentationTips: "Keep copies of the returns where each loss arose and a running loss memorandum.",
		},
	}
}

func defaultNotes() []domain.NoteRule {
	return []domain.NoteRule{
		{
			ID:                NoteHighProfitMargin,
			Name:              "High profit margin",
			Condition:         `!turnover_undefined && profit_ratio > high_profit_margin`,
			Explanation:       "Your profit margin is above average. This is not a risk signal and does not add to your score.",
			HMRCContext:       "Healthy margins are normal for many service trades.",
			DocumentationTips: "No action needed beyond keeping normal records.",
		},
		{
			ID:                NoteRoundedFigures,
			Name:              "Rounded figures",
			Condition:         `rounded_figures >= min_rounded_figures`,
			Explanation:       "Several of your figures are round numbers. Estimated figures can attract questions.",
			HMRCContext:       "Returns should be based on records, not estimates, unless an estimate is clearly flagged.",
			DocumentationTips: "Check each rounded figure against your books and use exact amounts where you have them.",
		},
	}
}

func defaultIndustries() []domain.IndustryProfile {
	return []domain.IndustryProfile{
		{
			ID:          domain.DefaultIndustry,
			Name:        "Other / General",
			Description: "General self-employment with no trade-specific adjustments.",
		},
		{
			ID:          "phv_taxi",
			Name:        "PHV / Taxi driver",
			Description: "Private hire and taxi drivers, whose vehicle is the main business asset.",
			Thresholds: map[string]float64{
				"large_mileage_miles":     30000,
				"max_mileage_value_ratio": 0.70,
			},
			Exceptions: []domain.IndustryException{
				{
					ID:         "phv_motor_exception",
					Suppresses: []string{IndicatorHighMotorCosts},
					Condition:  `motor_ratio > max_motor_ratio`,
					Note: domain.NoteRule{
						ID:                NotePHVMotorCosts,
						Name:              "Motor costs expected for PHV / taxi",
						Explanation:       "High motor costs are normal for private hire and taxi drivers and are not scored for this trade.",
						HMRCContext:       "HMRC still expects a private-use adjustment if the vehicle is used outside of work.",
						DocumentationTips: "Keep platform trip summaries alongside fuel and maintenance receipts.",
					},
				},
				{
					ID:        "phv_high_mileage",
					Condition: `mileage_claimed > phv_high_mileage_miles`,
					Note: domain.NoteRule{
						ID:                NotePHVHighMileage,
						Name:              "High mileage for PHV / taxi",
						Explanation:       "High annual mileage is typical for full-time drivers.",
						HMRCContext:       "Platform operator data is shared with HMRC and can be compared with claimed mileage.",
						DocumentationTips: "Download annual trip reports from each platform you drive for.",
					},
				},
			},
		},
		{
			ID:          "delivery_courier",
			Name:        "Delivery / Courier",
			Description: "Multi-drop and courier work where vehicle running costs are high.",
			Thresholds: map[string]float64{
				"max_motor_ratio": 0.35,
			},
			Exceptions: []domain.IndustryException{
				{
					ID:        "courier_motor_note",
					Condition: `motor_ratio > base_max_motor_ratio && motor_ratio <= max_motor_ratio`,
					Note: domain.NoteRule{
						ID:                NoteCourierMotor,
						Name:              "Motor costs within courier norms",
						Explanation:       "Your motor costs are above the general threshold but within the range expected for couriers.",
						DocumentationTips: "Keep delivery app statements as evidence of business mileage.",
					},
				},
			},
		},
		{
			ID:          "construction_cis",
			Name:        "Construction / CIS",
			Description: "Construction workers paid under the Construction Industry Scheme.",
			Thresholds: map[string]float64{
				"max_expense_ratio": 0.80,
			},
			Exceptions: []domain.IndustryException{
				{
					ID:        "cis_statements",
					Condition: `turnover > 0.0`,
					Note: domain.NoteRule{
						ID:                NoteCISDeductions,
						Name:              "CIS deductions",
						Explanation:       "Turnover should be the gross amount before CIS deductions, and deductions claimed back as tax paid.",
						HMRCContext:       "Contractors report CIS deductions monthly, so HMRC can reconcile them exactly.",
						DocumentationTips: "Keep every monthly CIS payment and deduction statement from each contractor.",
					},
				},
			},
		},
		{
			ID:          "retail",
			Name:        "Retail",
			Description: "Shops and online sellers where cost of goods is a large share of turnover.",
			Thresholds: map[string]float64{
				"max_expense_ratio": 0.85,
				"min_profit_margin": 0.05,
			},
			Exceptions: []domain.IndustryException{
				{
					ID:        "retail_margin",
					Condition: `expense_ratio > base_max_expense_ratio && expense_ratio <= max_expense_ratio`,
					Note: domain.NoteRule{
						ID:                NoteRetailMargin,
						Name:              "Stock costs within retail norms",
						Explanation:       "Stock purchases make expenses high relative to turnover in retail.",
						DocumentationTips: "Keep stock records and an opening and closing stock valuation.",
					},
				},
			},
		},
		{
			ID:          "consultant_it",
			Name:        "IT / Consultant",
			Description: "Consultants and contractors with low running costs.",
			Thresholds: map[string]float64{
				"max_expense_ratio":     0.50,
				"max_home_office_ratio": 0.05,
				"high_profit_margin":    0.80,
			},
			Exceptions: []domain.IndustryException{
				{
					ID:         "consultant_margin",
					Suppresses: []string{NoteHighProfitMargin},
					Condition:  `!turnover_undefined && profit_ratio > high_profit_margin`,
					Note: domain.NoteRule{
						ID:                NoteConsultantMargin,
						Name:              "High margin typical for consultancy",
						Explanation:       "Consultancy usually has few costs, so high margins are expected.",
						HMRCContext:       "Check whether IR35 applies to any engagement that looks like employment.",
						DocumentationTips: "Keep contracts and status determinations for each engagement.",
					},
				},
			},
		},
		{
			ID:          "cleaning",
			Name:        "Cleaning",
			Description: "Domestic and commercial cleaning services.",
			Thresholds: map[string]float64{
				"max_expense_ratio": 0.60,
			},
		},
	}
}
