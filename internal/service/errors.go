package service

import "net/http"

// invalidInputError maps to 400.
type invalidInputError struct{ msg string }

func (e invalidInputError) Error() string { return e.msg }

func (e invalidInputError) StatusCode() int { return http.StatusBadRequest }

// opNotFoundError maps to 404.
type opNotFoundError struct{ id string }

func (e opNotFoundError) Error() string { return "operation not found: " + e.id }

func (e opNotFoundError) StatusCode() int { return http.StatusNotFound }
