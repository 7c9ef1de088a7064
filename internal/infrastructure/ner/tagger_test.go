package ner

import (
	"context"
	"slices"
	"strings"
	"testing"
)

func TestTagExtractsDomainKeys(t *testing.T) {
	text := "A autora Maria da Silva ajuizou ação contra Loja Exemplo Ltda. na Comarca de Campinas, " +
		"em 12/03/2024, cobrando R$ 1.500,00 do Banco do Brasil. Residente em Campinas/SP."

	tags := NewTagger().Tag(context.Background(), text)

	if !slices.Contains(tags[KeyPartes], "Maria da Silva") {
		t.Fatalf("expected party Maria da Silva, got %#v", tags[KeyPartes])
	}
	if !slices.Contains(tags[KeyValores], "R$ 1.500,00") {
		t.Fatalf("expected money value, got %#v", tags[KeyValores])
	}
	if !slices.Contains(tags[KeyDatas], "12/03/2024") {
		t.Fatalf("expected date, got %#v", tags[KeyDatas])
	}
	if !slices.Contains(tags[KeyLocais], "Campinas") || !slices.Contains(tags[KeyLocais], "Campinas/SP") {
		t.Fatalf("expected locations, got %#v", tags[KeyLocais])
	}
	orgs := strings.Join(tags[KeyOrganizacoes], "|")
	if !strings.Contains(orgs, "Loja Exemplo Ltda") || !strings.Contains(orgs, "Banco do Brasil") {
		t.Fatalf("expected organizations, got %#v", tags[KeyOrganizacoes])
	}
}

func TestTagDropsEmptyKeys(t *testing.T) {
	tags := NewTagger().Tag(context.Background(), "sem entidades aqui")
	if len(tags) != 0 {
		t.Fatalf("expected no tags, got %#v", tags)
	}
}

func TestFlattenJoinsWithSemicolon(t *testing.T) {
	flat := Flatten(map[string][]string{KeyDatas: {"01/01/2024", "02/02/2024"}, KeyValores: nil})
	if flat[KeyDatas] != "01/01/2024; 02/02/2024" {
		t.Fatalf("unexpected flatten result: %#v", flat)
	}
	if _, ok := flat[KeyValores]; ok {
		t.Fatalf("expected empty list dropped")
	}
}
