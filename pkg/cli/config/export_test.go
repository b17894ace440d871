package config

// NewGeminiForTest creates a Gemini config for testing purposes
func NewGeminiForTest(projectID, location, model string) *Gemini {
	return &Gemini{
		projectID: projectID,
		location:  location,
		model:     model,
	}
}

// NewTablesForTest creates a Tables config reading from path
func NewTablesForTest(path string) *Tables {
	return &Tables{path: path}
}

// NewEmbeddingForTest creates an Embedding config without caches
func NewEmbeddingForTest(backend string, dimension, lruSize int) *Embedding {
	return &Embedding{
		backend:   backend,
		dimension: dimension,
		lruSize:   lruSize,
	}
}

// NewRetrievalForTest creates a Retrieval config
func NewRetrievalForTest(fetchMultiplier int, named, general float64) *Retrieval {
	return &Retrieval{
		fetchMultiplier:  fetchMultiplier,
		namedThreshold:   named,
		generalThreshold: general,
	}
}

// NewGenerationForTest creates an enabled Generation config
func NewGenerationForTest(maxLength int, temperature float64, maxConcurrent int) *Generation {
	return &Generation{
		enabled:       true,
		maxLength:     maxLength,
		temperature:   temperature,
		maxConcurrent: maxConcurrent,
	}
}

// NewRepositoryForTest creates a Repository config
func NewRepositoryForTest(backend, projectID, dsn string) *Repository {
	return &Repository{
		backend:     backend,
		projectID:   projectID,
		postgresDSN: dsn,
	}
}

var ParseGCSPath = parseGCSPath
