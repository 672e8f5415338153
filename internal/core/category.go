package core

const (
	CategoryElectricity Category = "electricity"
	CategoryWater       Category = "water"
	CategoryEMI         Category = "emi"
	CategoryLoan        Category = "loan"
	CategoryCreditCard  Category = "credit-card"
	CategoryInternet    Category = "internet"
	CategoryPhone       Category = "phone"
	CategoryInsurance   Category = "insurance"
	CategoryOther       Category = "other"
)

type (
	Category string

	// CategoryInfo is the display metadata of a category.
	CategoryInfo struct {
		Code        Category `json:"id"`
		DisplayName string   `json:"name"`
		Icon        string   `json:"icon"`
		ColorClass  string   `json:"color"`
	}
)

// registry is read-only after package initialisation. The last entry is the
// sentinel returned for unknown codes.
var registry = []CategoryInfo{
	{CategoryElectricity, "Electricity", "⚡", "bg-yellow-100 text-yellow-800"},
	{CategoryWater, "Water", "💧", "bg-blue-100 text-blue-800"},
	{CategoryEMI, "EMI", "🏠", "bg-green-100 text-green-800"},
	{CategoryLoan, "Loan", "🏦", "bg-purple-100 text-purple-800"},
	{CategoryCreditCard, "Credit Card", "💳", "bg-red-100 text-red-800"},
	{CategoryInternet, "Internet", "🌐", "bg-indigo-100 text-indigo-800"},
	{CategoryPhone, "Phone", "📱", "bg-pink-100 text-pink-800"},
	{CategoryInsurance, "Insurance", "🛡️", "bg-orange-100 text-orange-800"},
	{CategoryOther, "Other", "📋", "bg-gray-100 text-gray-800"},
}

var registryIndex = func() map[Category]int {
	idx := make(map[Category]int, len(registry))
	for i, c := range registry {
		idx[c.Code] = i
	}
	return idx
}()

// Categories returns the registry in display order.
func Categories() []CategoryInfo {
	return append([]CategoryInfo(nil), registry...)
}

// LookupCategory returns the entry for code, or the "other" entry when the
// code is not registered. It never fails.
func LookupCategory(code Category) CategoryInfo {
	if i, ok := registryIndex[code]; ok {
		return registry[i]
	}
	return registry[len(registry)-1]
}

func (c Category) IsKnown() bool {
	_, ok := registryIndex[c]
	return ok
}

func (c Category) String() string {
	return string(c)
}
