// Package categories maps business category keywords to provider-native
// vocabularies. The tables are data-driven so new providers and categories
// stay additive.
package categories

import "strings"

// Category is one resolved business category with its provider vocabularies
type Category struct {
	// Key is the canonical category name
	Key string

	// OSMTags are "key=value" selectors understood by Overpass and Nominatim
	OSMTags []string

	// GPlacesType is the commercial places provider type string
	GPlacesType string
}

// WildcardTags is the fixed fallback tag set queried when no category mapping
// exists for a requested business type
var WildcardTags = []string{
	"amenity=restaurant",
	"amenity=cafe",
	"amenity=bar",
	"amenity=fast_food",
	"shop=*",
	"office=*",
	"craft=*",
	"tourism=hotel",
	"leisure=fitness_centre",
}

// table is keyed by canonical category; aliases resolves common synonyms
var table = map[string]Category{
	"restaurant": {Key: "restaurant", OSMTags: []string{"amenity=restaurant", "amenity=fast_food"}, GPlacesType: "restaurant"},
	"cafe":       {Key: "cafe", OSMTags: []string{"amenity=cafe"}, GPlacesType: "cafe"},
	"bar":        {Key: "bar", OSMTags: []string{"amenity=bar", "amenity=pub"}, GPlacesType: "bar"},
	"bakery":     {Key: "bakery", OSMTags: []string{"shop=bakery"}, GPlacesType: "bakery"},
	"salon":      {Key: "salon", OSMTags: []string{"shop=hairdresser", "shop=beauty"}, GPlacesType: "beauty_salon"},
	"barber":     {Key: "barber", OSMTags: []string{"shop=hairdresser"}, GPlacesType: "hair_care"},
	"dentist":    {Key: "dentist", OSMTags: []string{"amenity=dentist"}, GPlacesType: "dentist"},
	"doctor":     {Key: "doctor", OSMTags: []string{"amenity=doctors", "amenity=clinic"}, GPlacesType: "doctor"},
	"pharmacy":   {Key: "pharmacy", OSMTags: []string{"amenity=pharmacy"}, GPlacesType: "pharmacy"},
	"plumber":    {Key: "plumber", OSMTags: []string{"craft=plumber"}, GPlacesType: "plumber"},
	"electrician": {
		Key: "electrician", OSMTags: []string{"craft=electrician"}, GPlacesType: "electrician",
	},
	"mechanic":   {Key: "mechanic", OSMTags: []string{"shop=car_repair"}, GPlacesType: "car_repair"},
	"gym":        {Key: "gym", OSMTags: []string{"leisure=fitness_centre"}, GPlacesType: "gym"},
	"florist":    {Key: "florist", OSMTags: []string{"shop=florist"}, GPlacesType: "florist"},
	"hotel":      {Key: "hotel", OSMTags: []string{"tourism=hotel", "tourism=guest_house"}, GPlacesType: "lodging"},
	"grocery":    {Key: "grocery", OSMTags: []string{"shop=supermarket", "shop=convenience"}, GPlacesType: "grocery_or_supermarket"},
	"butcher":    {Key: "butcher", OSMTags: []string{"shop=butcher"}, GPlacesType: "food"},
	"bookstore":  {Key: "bookstore", OSMTags: []string{"shop=books"}, GPlacesType: "book_store"},
	"laundry":    {Key: "laundry", OSMTags: []string{"shop=laundry", "shop=dry_cleaning"}, GPlacesType: "laundry"},
	"veterinary": {Key: "veterinary", OSMTags: []string{"amenity=veterinary"}, GPlacesType: "veterinary_care"},
	"lawyer":     {Key: "lawyer", OSMTags: []string{"office=lawyer"}, GPlacesType: "lawyer"},
	"accountant": {Key: "accountant", OSMTags: []string{"office=accountant"}, GPlacesType: "accounting"},
	"tailor":     {Key: "tailor", OSMTags: []string{"craft=tailor", "shop=tailor"}, GPlacesType: "clothing_store"},
	"carpenter":  {Key: "carpenter", OSMTags: []string{"craft=carpenter"}, GPlacesType: "general_contractor"},
	"locksmith":  {Key: "locksmith", OSMTags: []string{"craft=locksmith"}, GPlacesType: "locksmith"},
}

var aliases = map[string]string{
	"restaurants":   "restaurant",
	"cafes":         "cafe",
	"coffee":        "cafe",
	"coffee shop":   "cafe",
	"coffee shops":  "cafe",
	"bars":          "bar",
	"pub":           "bar",
	"pubs":          "bar",
	"bakeries":      "bakery",
	"salons":        "salon",
	"hairdresser":   "salon",
	"hairdressers":  "salon",
	"hair salon":    "salon",
	"barbers":       "barber",
	"barbershop":    "barber",
	"barbershops":   "barber",
	"dentists":      "dentist",
	"doctors":       "doctor",
	"clinic":        "doctor",
	"clinics":       "doctor",
	"pharmacies":    "pharmacy",
	"drugstore":     "pharmacy",
	"plumbers":      "plumber",
	"electricians":  "electrician",
	"mechanics":     "mechanic",
	"auto repair":   "mechanic",
	"car repair":    "mechanic",
	"gyms":          "gym",
	"fitness":       "gym",
	"florists":      "florist",
	"flower shop":   "florist",
	"hotels":        "hotel",
	"guesthouse":    "hotel",
	"groceries":     "grocery",
	"supermarket":   "grocery",
	"supermarkets":  "grocery",
	"butchers":      "butcher",
	"bookstores":    "bookstore",
	"bookshop":      "bookstore",
	"bookshops":     "bookstore",
	"laundromat":    "laundry",
	"dry cleaner":   "laundry",
	"dry cleaners":  "laundry",
	"vet":           "veterinary",
	"vets":          "veterinary",
	"veterinarian":  "veterinary",
	"veterinarians": "veterinary",
	"lawyers":       "lawyer",
	"attorney":      "lawyer",
	"attorneys":     "lawyer",
	"accountants":   "accountant",
	"tailors":       "tailor",
	"carpenters":    "carpenter",
	"locksmiths":    "locksmith",
}

// Lookup resolves a free-form business type to a Category
func Lookup(term string) (Category, bool) {
	k := strings.ToLower(strings.TrimSpace(term))
	if canon, ok := aliases[k]; ok {
		k = canon
	}
	c, ok := table[k]
	return c, ok
}

// Keys returns all canonical category names, for the prompt keyword scan
func Keys() []string {
	out := make([]string, 0, len(table)+len(aliases))
	for k := range table {
		out = append(out, k)
	}
	for k := range aliases {
		out = append(out, k)
	}
	return out
}

// OSMTagsFor resolves each requested type to OSM tags, deduplicated, falling
// back to the wildcard tag set when nothing maps
func OSMTagsFor(types []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range types {
		c, ok := Lookup(t)
		if !ok {
			continue
		}
		for _, tag := range c.OSMTags {
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}
	if len(out) == 0 {
		return append([]string(nil), WildcardTags...)
	}
	return out
}

// GPlacesTypeFor returns the first mappable commercial type, empty when none
func GPlacesTypeFor(types []string) string {
	for _, t := range types {
		if c, ok := Lookup(t); ok && c.GPlacesType != "" {
			return c.GPlacesType
		}
	}
	return ""
}
