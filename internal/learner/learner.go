// Package learner implements simulated language learners (echildren).
//
// A learner consumes sentences one at a time and nudges a weight per
// syntactic parameter toward 0 or 1. Only the final weights are read back.
package learner

import (
	"maps"

	"github.com/echild-lab/echild/internal/sentence"
)

// Learner is a simulated child acquiring a target grammar.
type Learner interface {
	// Consume updates the learner with one sentence.
	Consume(s sentence.Sentence)
	// TargetLanguage returns the grammar the learner is exposed to.
	TargetLanguage() int
	// Grammar returns a snapshot of the current parameter weights.
	Grammar() map[string]float64
}

// Factory creates a fresh learner for one trial.
type Factory func(rate, conservativeRate float64, targetLanguage int) Learner

// Parameter names, in CoLAG order.
const (
	SubjectPosition  = "SP"
	HeadIP           = "HIP"
	HeadCP           = "HCP"
	OptionalTopic    = "OPT"
	NullSubject      = "NS"
	NullTopic        = "NT"
	WhMovement       = "WHM"
	PiedPiping       = "PI"
	TopicMarking     = "TM"
	VerbToI          = "VtoI"
	IToC             = "ItoC"
	AffixHopping     = "AH"
	QuestionInverted = "QInv"
)

// Parameters lists every grammar parameter a learner tracks.
var Parameters = []string{
	SubjectPosition, HeadIP, HeadCP, OptionalTopic, NullSubject, NullTopic,
	WhMovement, PiedPiping, TopicMarking, VerbToI, IToC, AffixHopping, QuestionInverted,
}

// initialWeight is the unbiased starting value of every parameter.
const initialWeight = 0.5

// NDChild is a non-deterministic, trigger-based parameter learner.
//
// Unambiguous evidence moves a weight by the learning rate; ambiguous or
// default evidence moves it by the conservative rate. Not safe for
// concurrent use; each trial owns its own NDChild.
type NDChild struct {
	rate             float64
	conservativeRate float64
	target           int
	grammar          map[string]float64
	consumed         int
}

// NewNDChild returns an NDChild with every parameter at 0.5.
func NewNDChild(rate, conservativeRate float64, targetLanguage int) *NDChild {
	g := make(map[string]float64, len(Parameters))
	for _, p := range Parameters {
		g[p] = initialWeight
	}
	return &NDChild{
		rate:             rate,
		conservativeRate: conservativeRate,
		target:           targetLanguage,
		grammar:          g,
	}
}

// NewNDChildLearner is a Factory producing NDChild learners.
func NewNDChildLearner(rate, conservativeRate float64, targetLanguage int) Learner {
	return NewNDChild(rate, conservativeRate, targetLanguage)
}

// TargetLanguage implements Learner.
func (c *NDChild) TargetLanguage() int { return c.target }

// Grammar implements Learner.
func (c *NDChild) Grammar() map[string]float64 { return maps.Clone(c.grammar) }

// Consumed returns the number of sentences seen.
func (c *NDChild) Consumed() int { return c.consumed }

// Consume implements Learner.
func (c *NDChild) Consume(s sentence.Sentence) {
	c.consumed++
	if s.Len() == 0 {
		return
	}
	c.setSubjectPosition(s)
	c.setHeadIP(s)
	c.setHeadCP(s)
	c.setOptionalTopic(s)
	c.setNullSubject(s)
	c.setNullTopic(s)
	c.setWhMovement(s)
	c.setPiedPiping(s)
	c.setTopicMarking(s)
	c.setVerbToI(s)
	c.setIToC(s)
	c.setAffixHopping(s)
	c.setQuestionInversion(s)
}

// adjust moves parameter p toward target (0 or 1) by the given rate.
func (c *NDChild) adjust(p string, target, rate float64) {
	w := c.grammar[p]
	w += rate * (target - w)
	if w < 0 {
		w = 0
	} else if w > 1 {
		w = 1
	}
	c.grammar[p] = w
}

func (c *NDChild) strong(p string, target float64) { c.adjust(p, target, c.rate) }
func (c *NDChild) weak(p string, target float64)   { c.adjust(p, target, c.conservativeRate) }

func isQuestion(s sentence.Sentence) bool    { return s.Inflection() == "Q" }
func isDeclarative(s sentence.Sentence) bool { return s.Inflection() == "DEC" }
func isImperative(s sentence.Sentence) bool  { return s.Inflection() == "IMP" }

// exact returns the index of the first token equal to tok, or -1.
func exact(s sentence.Sentence, tok string) int {
	for i := range s.Len() {
		if s.Token(i) == tok {
			return i
		}
	}
	return -1
}

// finiteVerb returns the index of the first auxiliary or verb.
func finiteVerb(s sentence.Sentence) int {
	if i := exact(s, "Aux"); i != -1 {
		return i
	}
	return s.IndexOf("Verb")
}

// SP: subject before or after the first object in non-topicalized clauses.
func (c *NDChild) setSubjectPosition(s sentence.Sentence) {
	subj, obj := exact(s, "S"), s.IndexOf(sentence.MarkerO1)
	if subj == -1 || obj == -1 || isImperative(s) {
		return
	}
	if subj == 0 || obj == 0 {
		// Either argument may be topicalized; weak evidence only.
		if subj < obj {
			c.weak(SubjectPosition, 0)
		} else {
			c.weak(SubjectPosition, 1)
		}
		return
	}
	if subj < obj {
		c.strong(SubjectPosition, 0)
	} else {
		c.strong(SubjectPosition, 1)
	}
}

// HIP: verb relative to its object.
func (c *NDChild) setHeadIP(s sentence.Sentence) {
	verb, obj := s.IndexOf("Verb"), s.IndexOf(sentence.MarkerO1)
	if verb == -1 || obj == -1 {
		return
	}
	if obj == 0 || verb == 0 {
		if obj < verb {
			c.weak(HeadIP, 1)
		} else {
			c.weak(HeadIP, 0)
		}
		return
	}
	if obj < verb {
		c.strong(HeadIP, 1)
	} else {
		c.strong(HeadIP, 0)
	}
}

// HCP: the question particle marks the complementizer's side.
func (c *NDChild) setHeadCP(s sentence.Sentence) {
	ka := exact(s, "ka")
	if !isQuestion(s) || ka == -1 {
		return
	}
	switch ka {
	case s.Len() - 1:
		c.strong(HeadCP, 1)
	case 0:
		c.strong(HeadCP, 0)
	}
}

// OPT: a topicalized oblique is evidence for optional topics.
func (c *NDChild) setOptionalTopic(s sentence.Sentence) {
	if s.NonCanonicalOblique() {
		c.strong(OptionalTopic, 1)
		return
	}
	if isDeclarative(s) && exact(s, "S") == 0 {
		c.weak(OptionalTopic, 0)
	}
}

// NS: declaratives without an overt subject.
func (c *NDChild) setNullSubject(s sentence.Sentence) {
	if !isDeclarative(s) {
		return
	}
	if exact(s, "S") == -1 {
		c.strong(NullSubject, 1)
	} else {
		c.weak(NullSubject, 0)
	}
}

// NT: a verb that needs an object but appears without one.
func (c *NDChild) setNullTopic(s sentence.Sentence) {
	if !isDeclarative(s) {
		return
	}
	if exact(s, "S") == -1 && s.Contains("Verb") && !s.Contains(sentence.MarkerO1) && !s.Contains(sentence.MarkerO3) {
		c.strong(NullTopic, 1)
	} else {
		c.weak(NullTopic, 0)
	}
}

// WHM: questions whose wh-phrase is fronted.
func (c *NDChild) setWhMovement(s sentence.Sentence) {
	wh := s.IndexOf("WH")
	if !isQuestion(s) || wh == -1 {
		return
	}
	if wh == 0 || (wh == 1 && s.Token(0) == "P") {
		c.strong(WhMovement, 1)
	} else {
		c.weak(WhMovement, 0)
	}
}

// PI: a fronted preposition travelling with its object.
func (c *NDChild) setPiedPiping(s sentence.Sentence) {
	p, o3 := exact(s, sentence.MarkerP), s.IndexOf(sentence.MarkerO3)
	if p == -1 || o3 == -1 {
		return
	}
	switch {
	case p == 0 && o3 == 1:
		c.strong(PiedPiping, 1)
	case o3 == 0 && p > 1:
		c.strong(PiedPiping, 0)
	}
}

// TM: overt topic markers.
func (c *NDChild) setTopicMarking(s sentence.Sentence) {
	if s.Contains("WA") {
		c.strong(TopicMarking, 1)
	} else {
		c.weak(TopicMarking, 0)
	}
}

// VtoI: the verb crossing negation or adverbs.
func (c *NDChild) setVerbToI(s sentence.Sentence) {
	verb := s.IndexOf("Verb")
	if verb == -1 || exact(s, "Aux") != -1 {
		return
	}
	marker := exact(s, "Never")
	if marker == -1 {
		marker = exact(s, "Adv")
	}
	if marker == -1 || marker == 0 {
		return
	}
	if verb < marker {
		c.strong(VerbToI, 1)
	} else {
		c.weak(VerbToI, 0)
	}
}

// ItoC: the finite verb preceding a non-initial subject in declaratives.
func (c *NDChild) setIToC(s sentence.Sentence) {
	subj, fin := exact(s, "S"), finiteVerb(s)
	if !isDeclarative(s) || subj == -1 || fin == -1 {
		return
	}
	if fin < subj && subj > 0 && fin > 0 {
		c.strong(IToC, 1)
	} else if subj < fin {
		c.weak(IToC, 0)
	}
}

// AH: negation between subject and a bare verb.
func (c *NDChild) setAffixHopping(s sentence.Sentence) {
	subj, never, verb := exact(s, "S"), exact(s, "Never"), s.IndexOf("Verb")
	if subj == -1 || never == -1 || verb == -1 || exact(s, "Aux") != -1 {
		return
	}
	if subj < never && never < verb {
		c.strong(AffixHopping, 1)
	} else {
		c.weak(AffixHopping, 0)
	}
}

// QInv: subject-auxiliary inversion in questions.
func (c *NDChild) setQuestionInversion(s sentence.Sentence) {
	if !isQuestion(s) {
		return
	}
	if exact(s, "ka") != -1 {
		c.weak(QuestionInverted, 0)
		return
	}
	subj, fin := exact(s, "S"), finiteVerb(s)
	if subj == -1 || fin == -1 {
		return
	}
	if fin < subj {
		c.strong(QuestionInverted, 1)
	} else {
		c.weak(QuestionInverted, 0)
	}
}
