package similarity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agenthands/examina/internal/core/common"
)

// TermPair is an (English, Italian) translation or a pair of distinct concepts.
type TermPair struct {
	A string `yaml:"a" json:"a"`
	B string `yaml:"b" json:"b"`
}

// Vocabulary is the curated knowledge base the Judge consults before any numeric score.
type Vocabulary struct {
	Translations []TermPair `yaml:"translations" json:"translations"`
	Opposites    []TermPair `yaml:"opposites" json:"opposites"`
}

var translationPairs = []TermPair{
	// Automata
	{"finite state machine", "macchina a stati finiti"},
	{"finite state machines", "macchine a stati finiti"},
	{"finite state automaton", "automa a stati finiti"},
	{"state machine", "macchina a stati"},
	{"moore machine", "macchina di moore"},
	{"mealy machine", "macchina di mealy"},
	{"state diagram", "diagramma degli stati"},
	{"state table", "tabella degli stati"},
	{"transition table", "tabella di transizione"},
	{"state minimization", "minimizzazione degli stati"},
	{"automaton", "automa"},
	{"regular expression", "espressione regolare"},
	{"regular language", "linguaggio regolare"},
	{"grammar", "grammatica"},

	// Boolean logic
	{"boolean algebra", "algebra booleana"},
	{"boolean function", "funzione booleana"},
	{"truth table", "tabella di verita"},
	{"truth table", "tabella della verita"},
	{"karnaugh map", "mappa di karnaugh"},
	{"logic gate", "porta logica"},
	{"logic gates", "porte logiche"},
	{"logic circuit", "circuito logico"},
	{"sequential circuit", "circuito sequenziale"},
	{"sequential circuits", "circuiti sequenziali"},
	{"combinational circuit", "circuito combinatorio"},
	{"combinational circuits", "circuiti combinatori"},
	{"flip flop", "bistabile"},
	{"counter", "contatore"},
	{"register", "registro"},
	{"multiplexer", "multiplatore"},
	{"decoder", "decodificatore"},

	// Concurrency
	{"concurrent programming", "programmazione concorrente"},
	{"mutual exclusion", "mutua esclusione"},
	{"semaphore", "semaforo"},
	{"deadlock", "stallo"},
	{"process synchronization", "sincronizzazione dei processi"},

	// Generic exercise verbs and nouns
	{"design", "progettazione"},
	{"minimization", "minimizzazione"},
	{"simplification", "semplificazione"},
	{"analysis", "analisi"},
	{"implementation", "implementazione"},
	{"verification", "verifica"},
	{"conversion", "conversione"},
	{"proof", "dimostrazione"},
	{"exercise", "esercizio"},
	{"matrix", "matrice"},
	{"eigenvalues", "autovalori"},
	{"linear system", "sistema lineare"},
	{"derivative", "derivata"},
	{"integral", "integrale"},
}

var semanticOpposites = []TermPair{
	{"mealy", "moore"},
	{"sop", "pos"},
	{"sum of products", "product of sums"},
	{"somma di prodotti", "prodotto di somme"},
	{"sequential", "combinational"},
	{"sequenziale", "combinatorio"},
	{"sequenziali", "combinatori"},
	{"sequential", "combinatorio"},
	{"sequenziale", "combinational"},
	{"dfa", "nfa"},
	{"deterministic", "nondeterministic"},
	{"deterministico", "non deterministico"},
	{"synchronous", "asynchronous"},
	{"sincrono", "asincrono"},
	{"minterm", "maxterm"},
	{"mintermini", "maxtermini"},
	{"nand", "nor"},
	{"encoder", "decoder"},
	{"multiplexer", "demultiplexer"},
	{"upper bound", "lower bound"},
	{"maximum", "minimum"},
	{"endothermic", "exothermic"},
	{"positive charge", "negative charge"},
}

// DefaultTranslationPairs returns a copy of the built-in English/Italian table.
func DefaultTranslationPairs() []TermPair {
	return append([]TermPair(nil), translationPairs...)
}

// DefaultSemanticOpposites returns a copy of the built-in opposites table.
func DefaultSemanticOpposites() []TermPair {
	return append([]TermPair(nil), semanticOpposites...)
}

// DefaultVocabulary is the built-in knowledge base.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Translations: DefaultTranslationPairs(),
		Opposites:    DefaultSemanticOpposites(),
	}
}

// LoadVocabulary reads a YAML vocabulary file:
//
//	translations:
//	  - {a: "state diagram", b: "diagramma degli stati"}
//	opposites:
//	  - {a: "mealy", b: "moore"}
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("failed to read vocabulary file '%s': %w", path, err)
	}

	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("failed to parse vocabulary YAML: %w", err)
	}
	for i, p := range v.Translations {
		if common.Normalize(p.A) == "" || common.Normalize(p.B) == "" {
			return Vocabulary{}, fmt.Errorf("translation %d has an empty term", i)
		}
	}
	for i, p := range v.Opposites {
		if common.Normalize(p.A) == "" || common.Normalize(p.B) == "" {
			return Vocabulary{}, fmt.Errorf("opposite %d has an empty term", i)
		}
	}
	return v, nil
}

// Merge returns v extended with the pairs of other that v does not already hold.
func (v Vocabulary) Merge(other Vocabulary) Vocabulary {
	return Vocabulary{
		Translations: mergePairs(v.Translations, other.Translations),
		Opposites:    mergePairs(v.Opposites, other.Opposites),
	}
}

func mergePairs(base, extra []TermPair) []TermPair {
	seen := make(map[TermPair]bool, len(base))
	out := make([]TermPair, 0, len(base)+len(extra))
	for _, p := range append(append([]TermPair(nil), base...), extra...) {
		key := TermPair{common.Normalize(p.A), common.Normalize(p.B)}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}
