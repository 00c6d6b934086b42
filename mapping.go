/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rtledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/internal/salesapi"
	"github.com/rtledger/rtledger/model"
)

// Sale fields a column mapping can target.
const (
	FieldExternalOrderID = "external_order_id"
	FieldSaleDate        = "sale_date"
	FieldCustomerName    = "customer_name"
	FieldAmount          = "amount"
	FieldSalesperson     = "salesperson"
	FieldPartnerID       = "partner_id"
	FieldPartnerName     = "partner_name"
	FieldStore           = "store"
)

// Partner sheet fields.
const (
	PartnerFieldID             = "id"
	PartnerFieldName           = "name"
	PartnerFieldEmail          = "email"
	PartnerFieldPhone          = "phone"
	PartnerFieldPayoutKey      = "payout_key"
	PartnerFieldPayoutKeyType  = "payout_key_type"
	PartnerFieldCommissionRate = "commission_rate"
)

// ColumnMapping maps a field to the source column holding it.
type ColumnMapping map[string]string

func (m ColumnMapping) has(field string) bool {
	return strings.TrimSpace(m[field]) != ""
}

// SalesFeedMapping is the fixed mapping for rows coming from the sales API.
var SalesFeedMapping = ColumnMapping{
	FieldExternalOrderID: salesapi.FieldOrderID,
	FieldSaleDate:        salesapi.FieldCompletionDate,
	FieldCustomerName:    salesapi.FieldCustomer,
	FieldAmount:          salesapi.FieldAmount,
	FieldSalesperson:     salesapi.FieldSalesperson,
	FieldPartnerID:       salesapi.FieldPartnerID,
	FieldPartnerName:     salesapi.FieldPartnerName,
	FieldStore:           salesapi.FieldStore,
}

// ValidateMapping fails unless the fields every import needs are mapped. Sales API
// imports also need the order id, which is the dedup key.
func ValidateMapping(mapping ColumnMapping, source model.ImportSource) error {
	required := []string{FieldPartnerID, FieldAmount}
	if source == model.SourceSalesAPI {
		required = append(required, FieldExternalOrderID)
	}

	var missing []string
	for _, field := range required {
		if !mapping.has(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("column mapping is missing required field(s): %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}

func validatePartnerMapping(mapping ColumnMapping) error {
	if !mapping.has(PartnerFieldID) || !mapping.has(PartnerFieldName) {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "partner mapping needs the id and name columns", nil)
	}
	return nil
}

var saleAliases = map[string][]string{
	FieldExternalOrderID: {"idpedido", "pedido", "numeropedido", "orderid", "order"},
	FieldSaleDate:        {"data", "datavenda", "datafinalizacaoprevenda", "saledate", "date"},
	FieldCustomerName:    {"cliente", "clientefantasia", "nomecliente", "customer", "customername"},
	FieldAmount:          {"valor", "valorvenda", "valornota", "amount", "value", "total"},
	FieldSalesperson:     {"consultor", "vendedor", "salesperson", "seller"},
	FieldPartnerID:       {"idparceiro", "idarquiteto", "codigoparceiro", "partnerid"},
	FieldPartnerName:     {"parceiro", "arquiteto", "nomeparceiro", "nomearquiteto", "partnername"},
	FieldStore:           {"loja", "idempresa", "empresa", "store"},
}

var partnerAliases = map[string][]string{
	PartnerFieldID:             {"id", "idparceiro", "idarquiteto", "codigo", "partnerid"},
	PartnerFieldName:           {"nome", "name", "parceiro", "arquiteto"},
	PartnerFieldEmail:          {"email", "mail"},
	PartnerFieldPhone:          {"telefone", "celular", "phone", "whatsapp"},
	PartnerFieldPayoutKey:      {"pix", "chavepix", "payoutkey"},
	PartnerFieldPayoutKeyType:  {"tipochavepix", "tipopix", "payoutkeytype"},
	PartnerFieldCommissionRate: {"rt", "rtpercentual", "percentual", "comissao", "commissionrate"},
}

// SuggestMapping proposes a sale column mapping from the headers of an uploaded sheet.
func SuggestMapping(headers []string) ColumnMapping {
	return suggest(headers, saleAliases)
}

// SuggestPartnerMapping proposes a partner sheet mapping.
func SuggestPartnerMapping(headers []string) ColumnMapping {
	return suggest(headers, partnerAliases)
}

// maxMatchScore is the largest edit distance, relative to the alias length, accepted as a match.
const maxMatchScore = 0.25

type candidate struct {
	field  string
	header string
	score  float64
}

// suggest pairs fields with headers by edit distance to the field aliases, best pairs
// first, using each header at most once.
func suggest(headers []string, aliases map[string][]string) ColumnMapping {
	var candidates []candidate
	for field, names := range aliases {
		for _, header := range headers {
			normalized := normalizeHeader(header)
			if normalized == "" {
				continue
			}
			best := -1.0
			for _, alias := range names {
				distance := levenshtein.DistanceForStrings([]rune(alias), []rune(normalized), levenshtein.DefaultOptions)
				score := float64(distance) / float64(max(len([]rune(alias)), len([]rune(normalized))))
				if best < 0 || score < best {
					best = score
				}
			}
			if best >= 0 && best <= maxMatchScore {
				candidates = append(candidates, candidate{field: field, header: header, score: best})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		if candidates[i].field != candidates[j].field {
			return candidates[i].field < candidates[j].field
		}
		return candidates[i].header < candidates[j].header
	})

	mapping := ColumnMapping{}
	usedHeaders := map[string]bool{}
	for _, c := range candidates {
		if mapping.has(c.field) || usedHeaders[c.header] {
			continue
		}
		mapping[c.field] = c.header
		usedHeaders[c.header] = true
	}
	return mapping
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "ã", "a", "â", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ç", "c",
)

// normalizeHeader lowercases, drops accents and keeps letters and digits only.
func normalizeHeader(header string) string {
	header = accentReplacer.Replace(strings.ToLower(strings.TrimSpace(header)))
	var b strings.Builder
	for _, r := range header {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
