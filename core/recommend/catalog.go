package recommend

import "strings"

// Categories
const (
	CategoryCourses      = "cursos"
	CategoryActivities   = "actividades"
	CategoryStudyMethods = "metodos_estudio"
	CategoryResources    = "recursos"
)

// Difficulties
const (
	DifficultyBasic    = "basico"
	DifficultyMedium   = "medio"
	DifficultyAdvanced = "avanzado"
)

const (
	unknownItemTitle       = "Item desconocido"
	unknownItemDescription = "Sin descripción disponible"
	unknownItemCategory    = "desconocido"
)

// Catalog is the static list of learning resources available for recommendation.
var Catalog = []Item{
	// cursos
	{ID: "curso_algebra", Category: CategoryCourses, Name: "Álgebra Interactiva", Difficulty: DifficultyMedium,
		Description: "Ecuaciones y funciones con ejercicios guiados", Subjects: []string{"matematicas"}},
	{ID: "curso_calculo", Category: CategoryCourses, Name: "Introducción al Cálculo", Difficulty: DifficultyAdvanced,
		Description: "Límites, derivadas e integrales para preparatoria", Subjects: []string{"matematicas", "fisica"}},
	{ID: "curso_redaccion", Category: CategoryCourses, Name: "Taller de Redacción", Difficulty: DifficultyBasic,
		Description: "Textos argumentativos y ortografía", Subjects: []string{"espanol"}},
	{ID: "curso_biologia", Category: CategoryCourses, Name: "Biología Celular", Difficulty: DifficultyMedium,
		Description: "La célula, sus organelos y funciones", Subjects: []string{"ciencias", "biologia"}},
	{ID: "curso_historia_mexico", Category: CategoryCourses, Name: "Historia de México", Difficulty: DifficultyMedium,
		Description: "De la Independencia a la Revolución", Subjects: []string{"historia"}},
	{ID: "curso_ingles_conversacion", Category: CategoryCourses, Name: "Inglés Conversacional", Difficulty: DifficultyMedium,
		Description: "Práctica oral con situaciones cotidianas", Subjects: []string{"ingles"}},

	// actividades
	{ID: "actividad_laboratorio_virtual", Category: CategoryActivities, Name: "Laboratorio Virtual de Química", Difficulty: DifficultyMedium,
		Description: "Experimentos seguros desde el navegador", Subjects: []string{"ciencias", "quimica"}},
	{ID: "actividad_olimpiada_matematicas", Category: CategoryActivities, Name: "Olimpiada de Matemáticas", Difficulty: DifficultyAdvanced,
		Description: "Problemas de competencia y razonamiento lógico", Subjects: []string{"matematicas"}},
	{ID: "actividad_club_lectura", Category: CategoryActivities, Name: "Club de Lectura", Difficulty: DifficultyBasic,
		Description: "Lectura y discusión de literatura mexicana", Subjects: []string{"espanol", "literatura"}},
	{ID: "actividad_debate_historico", Category: CategoryActivities, Name: "Debate Histórico", Difficulty: DifficultyMedium,
		Description: "Argumentación sobre episodios de la historia nacional", Subjects: []string{"historia", "civismo"}},

	// metodos de estudio
	{ID: "metodo_pomodoro", Category: CategoryStudyMethods, Name: "Técnica Pomodoro", Difficulty: DifficultyBasic,
		Description: "Bloques de 25 minutos con descansos cortos", Effectiveness: 0.85},
	{ID: "metodo_mapas_mentales", Category: CategoryStudyMethods, Name: "Mapas Mentales", Difficulty: DifficultyBasic,
		Description: "Organización visual de conceptos", Effectiveness: 0.78},
	{ID: "metodo_repeticion_espaciada", Category: CategoryStudyMethods, Name: "Repetición Espaciada", Difficulty: DifficultyMedium,
		Description: "Repasos en intervalos crecientes", Effectiveness: 0.9},

	// recursos
	{ID: "recurso_videos_matematicas", Category: CategoryResources, Name: "Videoteca de Matemáticas", Difficulty: DifficultyBasic,
		Description: "Explicaciones en video por tema", Subjects: []string{"matematicas"}},
	{ID: "recurso_simulador_fisica", Category: CategoryResources, Name: "Simulador de Física", Difficulty: DifficultyAdvanced,
		Description: "Simulaciones de movimiento y energía", Subjects: []string{"fisica", "ciencias"}},
	{ID: "recurso_podcast_ingles", Category: CategoryResources, Name: "Podcast en Inglés", Difficulty: DifficultyMedium,
		Description: "Episodios cortos para comprensión auditiva", Subjects: []string{"ingles"}},
}

var catalogIndex = indexCatalog(Catalog)

func indexCatalog(items []Item) map[string]Item {
	idx := make(map[string]Item, len(items))
	for _, it := range items {
		idx[it.ID] = it
	}
	return idx
}

// FindItem returns the catalog Item with the given id.
func FindItem(id string) (Item, bool) {
	it, ok := catalogIndex[id]
	return it, ok
}

// CatalogByCategory returns the catalog items of the given category (case-insensitive).
func CatalogByCategory(category string) []Item {
	items := make([]Item, 0)
	for _, it := range Catalog {
		if strings.EqualFold(it.Category, category) {
			items = append(items, it)
		}
	}
	return items
}

// Categories returns the distinct catalog categories in catalog order.
func Categories() []string {
	seen := make(map[string]bool)
	cats := make([]string, 0, 4)
	for _, it := range Catalog {
		if !seen[it.Category] {
			seen[it.Category] = true
			cats = append(cats, it.Category)
		}
	}
	return cats
}

func (it Item) hasSubject(subject string) bool {
	for _, s := range it.Subjects {
		if strings.EqualFold(s, subject) {
			return true
		}
	}
	return false
}
