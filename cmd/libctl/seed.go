package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alquilibros/alquilibros-server/internal/domain"
	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/service"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

// sampleCatalog is the demo catalogue loaded by seed.
var sampleCatalog = []store.Record{
	{"titulo": "Cien años de soledad", "autor": "Gabriel García Márquez", "anioPublicacion": 1967, "isbn": "978-0307474728", "categoria": "Novela", "idioma": "Español", "sinopsis": "La historia de la familia Buendía a lo largo de siete generaciones en Macondo."},
	{"titulo": "Rayuela", "autor": "Julio Cortázar", "anioPublicacion": 1963, "isbn": "978-8437604572", "categoria": "Novela", "idioma": "Español", "sinopsis": "Una novela que puede leerse en más de un orden."},
	{"titulo": "Ficciones", "autor": "Jorge Luis Borges", "anioPublicacion": 1944, "isbn": "978-0802130303", "categoria": "Cuento", "idioma": "Español", "sinopsis": "Relatos sobre laberintos, bibliotecas infinitas y espejos."},
	{"titulo": "Huasipungo", "autor": "Jorge Icaza", "anioPublicacion": 1934, "isbn": "978-8437610108", "categoria": "Novela", "idioma": "Español", "sinopsis": "La vida de los indígenas en las haciendas de la sierra ecuatoriana."},
	{"titulo": "Pedro Páramo", "autor": "Juan Rulfo", "anioPublicacion": 1955, "isbn": "978-8437604183", "categoria": "Novela", "idioma": "Español", "sinopsis": "Juan Preciado viaja a Comala en busca de su padre."},
	{"titulo": "La ciudad y los perros", "autor": "Mario Vargas Llosa", "anioPublicacion": 1963, "isbn": "978-8420412146", "categoria": "Novela", "idioma": "Español", "sinopsis": "Cadetes de un colegio militar de Lima."},
	{"titulo": "Veinte poemas de amor y una canción desesperada", "autor": "Pablo Neruda", "anioPublicacion": 1924, "isbn": "978-8437607962", "categoria": "Poesía", "idioma": "Español", "sinopsis": "Poemario de juventud del autor chileno."},
	{"titulo": "El Principito", "autor": "Antoine de Saint-Exupéry", "anioPublicacion": 1943, "isbn": "978-0156012195", "categoria": "Infantil", "idioma": "Español", "sinopsis": "Un piloto perdido en el desierto conoce a un pequeño príncipe."},
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the sample book catalogue",
		Long:  "Creates the sample libros. Books whose ISBN already exists are skipped, so running seed twice is harmless.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := a.services()
			if err != nil {
				return err
			}
			created, skipped, err := seedCatalog(cmd.Context(), services.Records, sampleCatalog, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nSeed complete: %d created, %d already present\n", created, skipped)
			return nil
		},
	}
}

// seedCatalog creates every book. The ISBN uniqueness check of the libros hooks turns books that are already
// stored into skips.
func seedCatalog(ctx context.Context, records *service.RecordService, books []store.Record, out io.Writer) (created, skipped int, err error) {
	for _, book := range books {
		rec, err := records.Create(ctx, domain.Libros, book)
		switch {
		case errors.Is(err, domainerrors.ErrDuplicateIdentity):
			fmt.Fprintf(out, "skip    %s (%s)\n", book["titulo"], book["isbn"])
			skipped++
		case err != nil:
			return created, skipped, fmt.Errorf("create %q: %w", book["titulo"], err)
		default:
			fmt.Fprintf(out, "create  %s (id %s)\n", rec["titulo"], rec.ID())
			created++
		}
	}
	return created, skipped, nil
}
