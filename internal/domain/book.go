package domain

// Book is a catalogue entry in the libros collection.
type Book struct {
	ID              string `json:"id,omitzero"`
	Titulo          string `json:"titulo" validate:"required,max=300"`
	Autor           string `json:"autor" validate:"required,max=200"`
	AnioPublicacion int    `json:"anioPublicacion" validate:"required"`
	ISBN            string `json:"isbn" validate:"max=20"`
	Categoria       string `json:"categoria" validate:"max=100"`
	Idioma          string `json:"idioma" validate:"max=60"`
	Portada         string `json:"portada" validate:"omitempty,url"`
	Sinopsis        string `json:"sinopsis"`
	Criticas        string `json:"criticas"`
	Disponible      bool   `json:"disponible"`
}
