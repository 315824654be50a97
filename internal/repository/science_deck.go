package repository

import "quiztutor-backend/internal/models"

// ScienceDeck is the built-in deck used when no database is configured.
func ScienceDeck() *QuestionStore {
	return NewQuestionStore([]models.Question{
		{
			ID:          1,
			Kind:        models.QuestionChoice,
			Prompt:      "What is the process by which plants make their own food using sunlight?",
			Options:     []string{"Respiration", "Photosynthesis", "Digestion", "Transpiration"},
			Answer:      "Photosynthesis",
			Explanation: "Photosynthesis is the process where plants use sunlight, water, and carbon dioxide to create oxygen and energy in the form of sugar (glucose). This happens in the chloroplasts of plant cells.",
			Subject:     "Biology",
		},
		{
			ID:          2,
			Kind:        models.QuestionOpen,
			Prompt:      "What are the three states of matter?",
			Answer:      "Solid, Liquid, and Gas",
			Explanation: "The three common states of matter are solid (particles are tightly packed), liquid (particles are loosely connected and can flow), and gas (particles are far apart and move freely). There's also a fourth state called plasma!",
			Subject:     "Chemistry",
		},
		{
			ID:          3,
			Kind:        models.QuestionChoice,
			Prompt:      "What force pulls objects toward the center of the Earth?",
			Options:     []string{"Magnetism", "Friction", "Gravity", "Inertia"},
			Answer:      "Gravity",
			Explanation: "Gravity is a force that attracts objects with mass toward each other. On Earth, gravity pulls everything toward the planet's center, which is why things fall down and why we stay on the ground.",
			Subject:     "Physics",
		},
		{
			ID:          4,
			Kind:        models.QuestionChoice,
			Prompt:      "What is the largest organ in the human body?",
			Options:     []string{"Heart", "Brain", "Liver", "Skin"},
			Answer:      "Skin",
			Explanation: "The skin is the largest organ of the human body. It protects our internal organs, helps regulate body temperature, and allows us to sense touch, heat, and cold. An adult's skin can weigh about 8 pounds!",
			Subject:     "Biology",
		},
		{
			ID:          5,
			Kind:        models.QuestionOpen,
			Prompt:      "What gas do humans breathe in that is essential for survival?",
			Answer:      "Oxygen",
			Explanation: "Oxygen (O2) is the gas we breathe in from the air. Our bodies need oxygen for cellular respiration, which is how our cells produce energy. We breathe in oxygen and breathe out carbon dioxide.",
			Subject:     "Biology",
		},
	})
}
