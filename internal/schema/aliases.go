// aliases.go — таблица псевдонимов заголовков.
// Листы ведутся вручную, поэтому формулировки колонок гуляют между книгами
// ("NDA Signée", "NDA Signee", просто "NDA"). Разрешение — первый совпавший
// псевдоним по фиксированному порядку списка.
package schema

import "github.com/globecontacts/data-module/internal/domain/model"

// fieldAliases — каноническое поле и его псевдонимы в порядке приоритета.
// Псевдонимы хранятся уже в нормализованной форме (см. Normalize):
// нижний регистр, без диакритики, одиночные пробелы.
type fieldAliases struct {
	field   model.Field
	aliases []string
}

// aliasTable — фиксированный, упорядоченный список псевдонимов.
// Порядок полей и порядок псевдонимов внутри поля значимы:
// разрешение детерминировано независимо от содержимого листа.
var aliasTable = []fieldAliases{
	{model.FieldPseudo, []string{"pseudo", "pseudonyme", "nom d'affichage", "display name", "name"}},
	{model.FieldPrenom, []string{"prenom", "first name", "firstname"}},
	{model.FieldNom, []string{"nom", "nom de famille", "last name", "lastname", "surname"}},
	{model.FieldSociete, []string{"societe", "organisation", "entreprise", "company", "organization"}},
	{model.FieldPays, []string{"pays", "country"}},
	{model.FieldRegion, []string{"region", "departement", "state", "province"}},
	{model.FieldVille, []string{"ville", "commune", "city", "town"}},
	{model.FieldLatitude, []string{"latitude", "lat"}},
	{model.FieldLongitude, []string{"longitude", "lon", "lng"}},
	{model.FieldNDASignee, []string{"nda signee", "nda"}},
}

// Fields возвращает канонические поля в порядке таблицы псевдонимов.
func Fields() []model.Field {
	fields := make([]model.Field, 0, len(aliasTable))
	for _, fa := range aliasTable {
		fields = append(fields, fa.field)
	}
	return fields
}
