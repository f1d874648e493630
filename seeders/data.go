package seeders

// siteAreas is the floor layout used by sites that track by room rather than by department.
var siteAreas = []struct {
	Name        string
	Description string
}{
	{Name: "Workshop", Description: "Workshop area"},
	{Name: "Equipment Room", Description: "Equipment storage room"},
	{Name: "Storage Room", Description: "Storage room"},
	{Name: "Trackside", Description: "Trackside area"},
	{Name: "Office", Description: "Office area"},
	{Name: "Others", Description: "Other areas"},
}
