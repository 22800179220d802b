// gazetteer.go — встроенный справочник координат: столицы плюс короткий
// кураторский список городов, часто встречающихся в листах.
// Ключи — нормализованные "город|страна" (нижний регистр, без диакритики),
// названия — французские, как в самих листах.
package geocode

import "github.com/globecontacts/data-module/internal/domain/model"

var gazetteer = map[string]model.Coordinates{
	// Европа
	"paris|france":             {Lat: 48.8566, Lon: 2.3522},
	"londres|royaume-uni":      {Lat: 51.5074, Lon: -0.1278},
	"berlin|allemagne":         {Lat: 52.5200, Lon: 13.4050},
	"madrid|espagne":           {Lat: 40.4168, Lon: -3.7038},
	"rome|italie":              {Lat: 41.9028, Lon: 12.4964},
	"bruxelles|belgique":       {Lat: 50.8503, Lon: 4.3517},
	"berne|suisse":             {Lat: 46.9480, Lon: 7.4474},
	"lisbonne|portugal":        {Lat: 38.7223, Lon: -9.1393},
	"amsterdam|pays-bas":       {Lat: 52.3676, Lon: 4.9041},
	"vienne|autriche":          {Lat: 48.2082, Lon: 16.3738},
	"varsovie|pologne":         {Lat: 52.2297, Lon: 21.0122},
	"prague|tchequie":          {Lat: 50.0755, Lon: 14.4378},
	"copenhague|danemark":      {Lat: 55.6761, Lon: 12.5683},
	"stockholm|suede":          {Lat: 59.3293, Lon: 18.0686},
	"oslo|norvege":             {Lat: 59.9139, Lon: 10.7522},
	"helsinki|finlande":        {Lat: 60.1699, Lon: 24.9384},
	"dublin|irlande":           {Lat: 53.3498, Lon: -6.2603},
	"athenes|grece":            {Lat: 37.9838, Lon: 23.7275},
	"budapest|hongrie":         {Lat: 47.4979, Lon: 19.0402},
	"bucarest|roumanie":        {Lat: 44.4268, Lon: 26.1025},
	"sofia|bulgarie":           {Lat: 42.6977, Lon: 23.3219},
	"zagreb|croatie":           {Lat: 45.8150, Lon: 15.9819},
	"ljubljana|slovenie":       {Lat: 46.0569, Lon: 14.5058},
	"bratislava|slovaquie":     {Lat: 48.1486, Lon: 17.1077},
	"luxembourg|luxembourg":    {Lat: 49.6116, Lon: 6.1319},
	"monaco|monaco":            {Lat: 43.7384, Lon: 7.4246},
	"kiev|ukraine":             {Lat: 50.4501, Lon: 30.5234},
	"moscou|russie":            {Lat: 55.7558, Lon: 37.6173},

	// Afrique / Moyen-Orient
	"rabat|maroc":                {Lat: 34.0209, Lon: -6.8416},
	"alger|algerie":              {Lat: 36.7538, Lon: 3.0588},
	"tunis|tunisie":              {Lat: 36.8065, Lon: 10.1815},
	"dakar|senegal":              {Lat: 14.7167, Lon: -17.4677},
	"abidjan|cote d'ivoire":      {Lat: 5.3600, Lon: -4.0083},
	"le caire|egypte":            {Lat: 30.0444, Lon: 31.2357},
	"pretoria|afrique du sud":    {Lat: -25.7479, Lon: 28.2293},
	"beyrouth|liban":             {Lat: 33.8938, Lon: 35.5018},
	"tel aviv|israel":            {Lat: 32.0853, Lon: 34.7818},
	"dubai|emirats arabes unis":  {Lat: 25.2048, Lon: 55.2708},

	// Amériques
	"washington|etats-unis":   {Lat: 38.9072, Lon: -77.0369},
	"new york|etats-unis":     {Lat: 40.7128, Lon: -74.0060},
	"ottawa|canada":           {Lat: 45.4215, Lon: -75.6972},
	"montreal|canada":         {Lat: 45.5017, Lon: -73.5673},
	"mexico|mexique":          {Lat: 19.4326, Lon: -99.1332},
	"brasilia|bresil":         {Lat: -15.7975, Lon: -47.8919},
	"buenos aires|argentine":  {Lat: -34.6037, Lon: -58.3816},
	"santiago|chili":          {Lat: -33.4489, Lon: -70.6693},
	"lima|perou":              {Lat: -12.0464, Lon: -77.0428},
	"bogota|colombie":         {Lat: 4.7110, Lon: -74.0721},

	// Asie / Océanie
	"tokyo|japon":               {Lat: 35.6762, Lon: 139.6503},
	"pekin|chine":               {Lat: 39.9042, Lon: 116.4074},
	"seoul|coree du sud":        {Lat: 37.5665, Lon: 126.9780},
	"new delhi|inde":            {Lat: 28.6139, Lon: 77.2090},
	"bangkok|thailande":         {Lat: 13.7563, Lon: 100.5018},
	"hanoi|vietnam":             {Lat: 21.0285, Lon: 105.8542},
	"singapour|singapour":       {Lat: 1.3521, Lon: 103.8198},
	"jakarta|indonesie":         {Lat: -6.2088, Lon: 106.8456},
	"canberra|australie":        {Lat: -35.2809, Lon: 149.1300},
	"sydney|australie":          {Lat: -33.8688, Lon: 151.2093},
	"wellington|nouvelle-zelande": {Lat: -41.2866, Lon: 174.7756},

	// Villes françaises hors capitale — la majorité des listes est française
	"lyon|france":             {Lat: 45.7640, Lon: 4.8357},
	"marseille|france":        {Lat: 43.2965, Lon: 5.3698},
	"toulouse|france":         {Lat: 43.6047, Lon: 1.4442},
	"nice|france":             {Lat: 43.7102, Lon: 7.2620},
	"nantes|france":           {Lat: 47.2184, Lon: -1.5536},
	"montpellier|france":      {Lat: 43.6108, Lon: 3.8767},
	"strasbourg|france":       {Lat: 48.5734, Lon: 7.7521},
	"bordeaux|france":         {Lat: 44.8378, Lon: -0.5792},
	"lille|france":            {Lat: 50.6292, Lon: 3.0573},
	"rennes|france":           {Lat: 48.1173, Lon: -1.6778},
	"grenoble|france":         {Lat: 45.1885, Lon: 5.7245},
	"toulon|france":           {Lat: 43.1242, Lon: 5.9280},
	"angers|france":           {Lat: 47.4784, Lon: -0.5632},
	"dijon|france":            {Lat: 47.3220, Lon: 5.0415},
	"nimes|france":            {Lat: 43.8367, Lon: 4.3601},
	"clermont-ferrand|france": {Lat: 45.7772, Lon: 3.0870},
	"tours|france":            {Lat: 47.3941, Lon: 0.6848},
	"limoges|france":          {Lat: 45.8336, Lon: 1.2611},
	"annecy|france":           {Lat: 45.8992, Lon: 6.1294},
	"perpignan|france":        {Lat: 42.6887, Lon: 2.8948},
}

// lookupGazetteer ищет точное совпадение нормализованного ключа.
func lookupGazetteer(key string) (model.Coordinates, bool) {
	c, ok := gazetteer[key]
	return c, ok
}
