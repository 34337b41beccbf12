// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package graph turns raw extraction output into deduplicated graph rows.
//
// Extracted types are free-form model output. They are normalized onto the
// canonical node and edge enums through fixed synonym tables; anything
// unrecognized falls back to the default type instead of failing the
// segment. Labels are trimmed before comparison or storage, and edges are
// resolved against the nodes of the same extraction.
package graph

import (
	"strings"

	"github.com/poiesic/kbflow/core"
)

var nodeSynonyms = map[string]core.NodeType{
	"people": core.NodeTypePerson, "human": core.NodeTypePerson, "individual": core.NodeTypePerson,
	"user": core.NodeTypePerson, "customer": core.NodeTypePerson, "employee": core.NodeTypePerson,
	"author": core.NodeTypePerson, "founder": core.NodeTypePerson, "ceo": core.NodeTypePerson,
	"character": core.NodeTypePerson, "persona": core.NodeTypePerson, "per": core.NodeTypePerson,

	"org": core.NodeTypeOrganization, "company": core.NodeTypeOrganization, "corporation": core.NodeTypeOrganization,
	"business": core.NodeTypeOrganization, "service": core.NodeTypeOrganization, "agency": core.NodeTypeOrganization,
	"institution": core.NodeTypeOrganization, "bank": core.NodeTypeOrganization, "firm": core.NodeTypeOrganization,
	"vendor": core.NodeTypeOrganization, "provider": core.NodeTypeOrganization, "team": core.NodeTypeOrganization,
	"department": core.NodeTypeOrganization, "government": core.NodeTypeOrganization, "startup": core.NodeTypeOrganization,
	"university": core.NodeTypeOrganization, "nonprofit": core.NodeTypeOrganization,

	"credit_card": core.NodeTypeProduct, "card": core.NodeTypeProduct, "software": core.NodeTypeProduct,
	"application": core.NodeTypeProduct, "app": core.NodeTypeProduct, "tool": core.NodeTypeProduct,
	"device": core.NodeTypeProduct, "feature": core.NodeTypeProduct, "plan": core.NodeTypeProduct,
	"offering": core.NodeTypeProduct, "item": core.NodeTypeProduct, "platform": core.NodeTypeProduct,
	"api": core.NodeTypeProduct, "account": core.NodeTypeProduct, "subscription": core.NodeTypeProduct,

	"place": core.NodeTypeLocation, "city": core.NodeTypeLocation, "country": core.NodeTypeLocation,
	"region": core.NodeTypeLocation, "address": core.NodeTypeLocation, "state": core.NodeTypeLocation,
	"area": core.NodeTypeLocation, "site": core.NodeTypeLocation, "building": core.NodeTypeLocation,
	"gpe": core.NodeTypeLocation, "loc": core.NodeTypeLocation,

	"meeting": core.NodeTypeEvent, "incident": core.NodeTypeEvent, "conference": core.NodeTypeEvent,
	"launch": core.NodeTypeEvent, "release": core.NodeTypeEvent, "transaction": core.NodeTypeEvent,
	"outage": core.NodeTypeEvent, "date": core.NodeTypeEvent,

	"idea": core.NodeTypeConcept, "theory": core.NodeTypeConcept, "method": core.NodeTypeConcept,
	"process": core.NodeTypeConcept, "policy": core.NodeTypeConcept, "technology": core.NodeTypeConcept,
	"skill": core.NodeTypeConcept, "abstract_concept": core.NodeTypeConcept, "fee": core.NodeTypeConcept,

	"subject": core.NodeTypeTopic, "theme": core.NodeTypeTopic, "category": core.NodeTypeTopic,
	"keyword": core.NodeTypeTopic, "term": core.NodeTypeTopic, "misc": core.NodeTypeTopic,
}

var edgeSynonyms = map[string]core.EdgeType{
	"mention": core.EdgeTypeMentions, "references": core.EdgeTypeMentions, "refers_to": core.EdgeTypeMentions,
	"cites": core.EdgeTypeMentions, "talks_about": core.EdgeTypeMentions,

	"related": core.EdgeTypeRelatedTo, "associated_with": core.EdgeTypeRelatedTo, "linked_to": core.EdgeTypeRelatedTo,
	"connected_to": core.EdgeTypeRelatedTo, "relates_to": core.EdgeTypeRelatedTo, "similar_to": core.EdgeTypeRelatedTo,

	"affects": core.EdgeTypeInfluences, "impacts": core.EdgeTypeInfluences, "causes": core.EdgeTypeInfluences,
	"drives": core.EdgeTypeInfluences, "leads_to": core.EdgeTypeInfluences, "influenced": core.EdgeTypeInfluences,

	"belongs_to": core.EdgeTypePartOf, "member_of": core.EdgeTypePartOf, "subsidiary_of": core.EdgeTypePartOf,
	"component_of": core.EdgeTypePartOf, "division_of": core.EdgeTypePartOf,

	"based_in": core.EdgeTypeLocatedIn, "headquartered_in": core.EdgeTypeLocatedIn, "lives_in": core.EdgeTypeLocatedIn,
	"located_at": core.EdgeTypeLocatedIn, "operates_in": core.EdgeTypeLocatedIn,

	"employed_by": core.EdgeTypeWorksFor, "works_at": core.EdgeTypeWorksFor, "employee_of": core.EdgeTypeWorksFor,
	"ceo_of": core.EdgeTypeWorksFor, "leads": core.EdgeTypeWorksFor, "manages": core.EdgeTypeWorksFor,
	"works_with": core.EdgeTypeWorksFor,

	"offers": core.EdgeTypeProvides, "sells": core.EdgeTypeProvides, "supplies": core.EdgeTypeProvides,
	"issues": core.EdgeTypeProvides, "delivers": core.EdgeTypeProvides, "serves": core.EdgeTypeProvides,
	"provided_by": core.EdgeTypeProvides,

	"utilizes": core.EdgeTypeUses, "adopts": core.EdgeTypeUses, "uses_tool": core.EdgeTypeUses,
	"used_by": core.EdgeTypeUses,

	"requires": core.EdgeTypeDependsOn, "relies_on": core.EdgeTypeDependsOn, "needs": core.EdgeTypeDependsOn,

	"founded_by": core.EdgeTypeCreatedBy, "built_by": core.EdgeTypeCreatedBy, "developed_by": core.EdgeTypeCreatedBy,
	"authored_by": core.EdgeTypeCreatedBy, "written_by": core.EdgeTypeCreatedBy, "made_by": core.EdgeTypeCreatedBy,
	"invented_by": core.EdgeTypeCreatedBy,
}

func init() {
	for _, t := range core.NodeTypes {
		nodeSynonyms[string(t)] = t
	}
	for _, t := range core.EdgeTypes {
		edgeSynonyms[string(t)] = t
	}
}

// typeKey folds a raw type into lookup form: lowercase, with runs of spaces,
// hyphens and underscores collapsed into one underscore.
func typeKey(raw string) string {
	fields := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t' || r == '\n'
	})
	return strings.Join(fields, "_")
}

// LookupNodeType maps a raw type onto its canonical node type.
func LookupNodeType(raw string) (core.NodeType, bool) {
	t, ok := nodeSynonyms[typeKey(raw)]
	return t, ok
}

// NormalizeNodeType maps a raw type onto its canonical node type, falling
// back to core.DefaultNodeType.
func NormalizeNodeType(raw string) core.NodeType {
	if t, ok := LookupNodeType(raw); ok {
		return t
	}
	return core.DefaultNodeType
}

// LookupEdgeType maps a raw type onto its canonical edge type.
func LookupEdgeType(raw string) (core.EdgeType, bool) {
	t, ok := edgeSynonyms[typeKey(raw)]
	return t, ok
}

// NormalizeEdgeType maps a raw type onto its canonical edge type, falling
// back to core.DefaultEdgeType.
func NormalizeEdgeType(raw string) core.EdgeType {
	if t, ok := LookupEdgeType(raw); ok {
		return t
	}
	return core.DefaultEdgeType
}
