package evo

import "stipple/internal/model"

// Mutation derives an offspring gene from a parent without modifying it.
type Mutation interface {
	Mutate(gene model.Gene) model.Gene
}

// MutationFunc adapts a plain function to Mutation.
type MutationFunc func(gene model.Gene) model.Gene

func (f MutationFunc) Mutate(gene model.Gene) model.Gene {
	return f(gene)
}
