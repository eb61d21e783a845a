package devserver

import "github.com/shopspring/decimal"

const DemoRestaurantID = "1"

// SeedDemo loads one restaurant with a small menu so the mobile API is
// usable right after startup.
func SeedDemo(s *Store) {
	price := decimal.RequireFromString
	s.AddRestaurant(DemoRestaurantID, "La Fonda", []Product{
		{ID: "101", Name: "Tacos al pastor", Description: "Three corn tortillas, pork, pineapple", Price: price("12.50"), Category: "Platos"},
		{ID: "102", Name: "Enchiladas verdes", Description: "Chicken, green salsa, cream", Price: price("14.90"), Category: "Platos"},
		{ID: "103", Name: "Pozole rojo", Price: price("16.00"), Category: "Platos"},
		{ID: "201", Name: "Agua de horchata", Description: "Rice and cinnamon", Price: price("3.75"), Category: "Bebidas"},
		{ID: "202", Name: "Café de olla", Price: price("2.50"), Category: "Bebidas"},
		{ID: "301", Name: "Flan", Price: price("5.25"), Category: "Postres"},
	})
}
