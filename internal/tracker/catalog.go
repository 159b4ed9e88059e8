package tracker

// Catalog lists the preset stores a day can be planned from.
func Catalog() []Store {
	return []Store{
		{ID: "WM1492", Name: "Walmart 1492", Address: "14000 E Exposition Ave, Aurora, CO 80012", DeliveryHint: "yes"},
		{ID: "KS00014", Name: "King Soopers 00014", Address: "655 Peoria St, Aurora, CO 80011", DeliveryHint: "no"},
		{ID: "FD3477", Name: "Family Dollar 3477", Address: "620 Peoria St, Aurora, CO 80011", DeliveryHint: "no"},
		{ID: "TG1471", Name: "Target SC 1471", Address: "14200 E Ellsworth Ave, Aurora, CO 80012", DeliveryHint: "no"},
	}
}

// CatalogStore looks up a preset store by ID.
func CatalogStore(id string) (Store, bool) {
	for _, s := range Catalog() {
		if s.ID == id {
			return s, true
		}
	}
	return Store{}, false
}

// DefaultAttestations is the checklist a new day starts with.
func DefaultAttestations() []Attestation {
	return []Attestation{
		{Label: "PREMIER steps planned", Checked: false},
		{Label: "Safety shoes", Checked: false},
	}
}
