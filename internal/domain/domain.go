// Package domain holds the entities of the rental API and the rules that belong to them alone.
//
// Records are persisted as JSON objects; the struct tags below are the wire and storage field names, which stay
// byte-compatible with the existing front end (including its spelling).
package domain

// Collection names.
const (
	Usuarios   = "usuarios"
	Libros     = "libros"
	Alquileres = "alquileres"
)

// Collections lists every collection the store is opened with.
var Collections = []string{Usuarios, Libros, Alquileres}

// ForeignKey returns the field other records use to reference a record of collection, as json-server derives
// it for _dependent cascades: "usuarios" -> "usuarioId", "libros" -> "libroId".
func ForeignKey(collection string) string {
	singular := collection
	switch {
	case len(collection) > 3 && collection[len(collection)-3:] == "res":
		singular = collection[:len(collection)-2]
	case len(collection) > 1 && collection[len(collection)-1] == 's':
		singular = collection[:len(collection)-1]
	}
	return singular + "Id"
}
