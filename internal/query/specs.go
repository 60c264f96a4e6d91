package query

var Tours = Spec{
	Fields: map[string]Kind{
		"name":            String,
		"slug":            String,
		"duration":        Number,
		"maxGroupSize":    Number,
		"difficulty":      String,
		"ratingsAverage":  Number,
		"ratingsQuantity": Number,
		"price":           Number,
		"priceDiscount":   Number,
		"createdAt":       Date,
		"startDates":      Date,
	},
	Selectable: []string{
		"name", "slug", "duration", "maxGroupSize", "difficulty", "ratingsAverage", "ratingsQuantity",
		"price", "priceDiscount", "summary", "description", "imageCover", "images", "createdAt",
		"startDates", "startLocation", "locations", "guides",
	},
	Multi: []string{"duration", "ratingsQuantity", "ratingsAverage", "maxGroupSize", "difficulty", "price"},
}

var Users = Spec{
	Fields: map[string]Kind{
		"name":  String,
		"email": String,
		"role":  String,
	},
	Selectable: []string{"name", "email", "photo", "role"},
}

var Reviews = Spec{
	Fields: map[string]Kind{
		"rating":    Number,
		"createdAt": Date,
	},
	Selectable: []string{"review", "rating", "createdAt", "tour", "user"},
}

var Bookings = Spec{
	Fields: map[string]Kind{
		"price":     Number,
		"paid":      Bool,
		"createdAt": Date,
	},
	Selectable: []string{"tour", "user", "price", "paid", "createdAt", "updatedAt"},
}
