package floorplan

import (
	"fmt"
	"sort"
)

// Template is a ready-made building layout. Every exit that sits outside an
// exterior wall has a door in that wall.
type Template struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Floors      []Floor `json:"floors"`
}

func box(x1, y1, x2, y2 float64) []Wall {
	return []Wall{
		{x1, y1, x2, y1},
		{x2, y1, x2, y2},
		{x2, y2, x1, y2},
		{x1, y2, x1, y1},
	}
}

func door(id string, x, y, width float64, capacity int, o Orientation, throughput float64) Door {
	return Door{
		ID:          id,
		X:           x,
		Y:           y,
		Width:       width,
		Capacity:    capacity,
		Orientation: o,
		Throughput:  throughput,
		Direction:   Both,
	}
}

func exit(x, y float64, floor int) Exit   { return Exit{X: x, Y: y, Floor: floor, Type: MarkerExit} }
func stairs(x, y float64, floor int) Exit { return Exit{X: x, Y: y, Floor: floor, Type: MarkerStairs} }

var templates = map[string]func() Template{
	"office": func() Template {
		return Template{
			Name:        "office",
			Title:       "Office building (2 floors)",
			Description: "Open-plan office with two staircases",
			Floors: []Floor{
				{
					ID: 1,
					Walls: append(box(100, 100, 900, 600),
						Wall{300, 100, 300, 300},
						Wall{700, 100, 700, 300},
						Wall{300, 400, 300, 600},
						Wall{700, 400, 700, 600},
					),
					Doors: []Door{
						door("door-1", 500, 100, 60, 2, Horizontal, 1.2),
						door("door-2", 300, 350, 60, 2, Vertical, 1.2),
						door("door-3", 700, 350, 60, 2, Vertical, 1.2),
						door("door-16", 100, 350, 60, 2, Vertical, 1.2),
						door("door-17", 900, 350, 60, 2, Vertical, 1.2),
					},
					Exits: []Exit{
						exit(500, 50, 1),
						exit(80, 350, 1),
						exit(920, 350, 1),
						stairs(180, 200, 1),
						stairs(820, 200, 1),
					},
				},
				{
					ID:    2,
					Walls: append(box(100, 100, 900, 600), Wall{500, 100, 500, 600}),
					Doors: []Door{door("door-4", 500, 350, 60, 2, Vertical, 1.2)},
					Exits: []Exit{stairs(180, 200, 2), stairs(820, 200, 2)},
				},
			},
		}
	},
	"mall": func() Template {
		return Template{
			Name:        "mall",
			Title:       "Shopping centre (1 floor)",
			Description: "Large hall with several exits and wide aisles",
			Floors: []Floor{
				{
					ID: 1,
					Walls: append(box(50, 50, 950, 650),
						Wall{350, 200, 350, 500},
						Wall{650, 200, 650, 500},
						Wall{350, 200, 650, 200},
						Wall{350, 500, 650, 500},
					),
					Doors: []Door{
						door("door-5", 500, 200, 80, 3, Horizontal, 1.5),
						door("door-6", 500, 500, 80, 3, Horizontal, 1.5),
						door("door-18", 500, 50, 80, 3, Horizontal, 1.5),
						door("door-19", 950, 350, 80, 3, Vertical, 1.5),
						door("door-20", 500, 650, 80, 3, Horizontal, 1.5),
						door("door-21", 50, 350, 80, 3, Vertical, 1.5),
					},
					Exits: []Exit{
						exit(500, 20, 1),
						exit(980, 350, 1),
						exit(500, 680, 1),
						exit(20, 350, 1),
					},
				},
			},
		}
	},
	"school": func() Template {
		return Template{
			Name:        "school",
			Title:       "School (3 floors)",
			Description: "Classrooms off a central corridor on every floor",
			Floors: []Floor{
				{
					ID: 1,
					Walls: append(box(100, 100, 900, 600),
						Wall{100, 300, 400, 300},
						Wall{600, 300, 900, 300},
						Wall{100, 400, 400, 400},
						Wall{600, 400, 900, 400},
					),
					Doors: []Door{
						door("door-7", 200, 300, 60, 2, Horizontal, 1.2),
						door("door-8", 700, 300, 60, 2, Horizontal, 1.2),
						door("door-9", 200, 400, 60, 2, Horizontal, 1.2),
						door("door-10", 700, 400, 60, 2, Horizontal, 1.2),
						door("door-22", 500, 100, 60, 2, Horizontal, 1.2),
						door("door-23", 500, 600, 60, 2, Horizontal, 1.2),
					},
					Exits: []Exit{
						exit(500, 70, 1),
						exit(500, 630, 1),
						stairs(150, 500, 1),
						stairs(850, 500, 1),
					},
				},
				{
					ID: 2,
					Walls: append(box(100, 100, 900, 600),
						Wall{100, 300, 400, 300},
						Wall{600, 300, 900, 300},
					),
					Doors: []Door{
						door("door-11", 200, 300, 60, 2, Horizontal, 1.2),
						door("door-12", 700, 300, 60, 2, Horizontal, 1.2),
					},
					Exits: []Exit{stairs(150, 500, 2), stairs(850, 500, 2)},
				},
				{
					ID:    3,
					Walls: append(box(100, 100, 900, 600), Wall{500, 100, 500, 300}),
					Doors: []Door{door("door-13", 500, 300, 60, 2, Vertical, 1.2)},
					Exits: []Exit{stairs(150, 500, 3), stairs(850, 500, 3)},
				},
			},
		}
	},
	"shop": func() Template {
		return Template{
			Name:        "shop",
			Title:       "Small shop",
			Description: "Compact room with a single entrance",
			Floors: []Floor{
				{
					ID:    1,
					Walls: append(box(200, 200, 800, 500), box(400, 300, 600, 400)...),
					Doors: []Door{door("door-24", 500, 200, 80, 3, Horizontal, 1.5)},
					Exits: []Exit{exit(500, 170, 1)},
				},
			},
		}
	},
	"conference": func() Template {
		return Template{
			Name:        "conference",
			Title:       "Conference hall",
			Description: "Large hall with side exits",
			Floors: []Floor{
				{
					ID: 1,
					Walls: append(box(150, 150, 850, 550),
						Wall{400, 150, 400, 250},
						Wall{600, 150, 600, 250},
					),
					Doors: []Door{
						door("door-14", 400, 250, 60, 2, Vertical, 1.2),
						door("door-15", 600, 250, 60, 2, Vertical, 1.2),
						door("door-25", 150, 350, 60, 2, Vertical, 1.2),
						door("door-26", 850, 350, 60, 2, Vertical, 1.2),
						door("door-27", 500, 150, 60, 2, Horizontal, 1.2),
					},
					Exits: []Exit{
						exit(120, 350, 1),
						exit(880, 350, 1),
						exit(500, 120, 1),
					},
				},
			},
		}
	},
}

// TemplateNames returns the available template names in sorted order.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Templates returns every template, sorted by name. Each call builds fresh
// floors so callers may modify them.
func Templates() []Template {
	names := TemplateNames()
	out := make([]Template, 0, len(names))
	for _, name := range names {
		out = append(out, templates[name]())
	}
	return out
}

// LoadTemplate returns a fresh copy of the named template.
func LoadTemplate(name string) (Template, error) {
	build, ok := templates[name]
	if !ok {
		return Template{}, fmt.Errorf("unknown template %q (available: %v)", name, TemplateNames())
	}
	return build(), nil
}
