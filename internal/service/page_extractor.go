package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/noah-isme/astra-go-api/internal/models"
	"github.com/noah-isme/astra-go-api/internal/repository"
	"github.com/noah-isme/astra-go-api/pkg/aplus"
)

// contentFragmentIDs are the element ids probed for the exercise content
// fragment, in priority order before the entry-content class fallback.
var contentFragmentIDs = map[string]struct{}{
	"exercise": {},
	"aplus":    {},
	"chapter":  {},
}

// PageExtractorConfig carries the explicit settings the extractor needs to
// build host-side URLs.
type PageExtractorConfig struct {
	// BaseURL is this server's external origin, e.g. "https://astra.example".
	BaseURL string
	// HostRemap substitutes hosts in rewritten asset URLs.
	HostRemap map[string]string
}

// PageExtractor turns a raw exercise service response into an ExercisePage:
// content fragment, protocol flags, injectable assets and rewritten URLs.
type PageExtractor interface {
	Extract(ctx context.Context, object models.LearningObject, page *aplus.RemotePage) (*ExercisePage, error)
}

type pageExtractor struct {
	objects repository.LearningObjectRepository
	rounds  repository.RoundRepository
	cfg     PageExtractorConfig
	logger  zerolog.Logger
}

// NewPageExtractor constructs a PageExtractor instance.
func NewPageExtractor(objects repository.LearningObjectRepository, rounds repository.RoundRepository, cfg PageExtractorConfig, logger zerolog.Logger) PageExtractor {
	return &pageExtractor{
		objects: objects,
		rounds:  rounds,
		cfg:     PageExtractorConfig{
			BaseURL:   strings.TrimRight(cfg.BaseURL, "/"),
			HostRemap: cfg.HostRemap,
		},
		logger: logger.With().Str("component", "page_extractor").Logger(),
	}
}

func (s *pageExtractor) Extract(ctx context.Context, object models.LearningObject, page *aplus.RemotePage) (*ExercisePage, error) {
	doc, err := html.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &aplus.ParseError{URL: page.URL, Err: err}
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, &aplus.ParseError{URL: page.URL, Err: err}
	}

	result := &ExercisePage{
		IsLoaded:     true,
		Meta:         make(map[string]string),
		LastModified: page.LastModified(),
		Expires:      page.Expires(),
	}

	var round models.Round
	if loaded, err := s.rounds.GetByID(ctx, object.RoundID); err == nil {
		round = loaded
	} else {
		s.logger.Warn().Err(err).Uint("round_id", object.RoundID).Msg("round lookup failed, chapter links will not resolve")
	}

	s.collectAliasScripts(doc, result)
	s.rewriteURLs(ctx, doc, base, object, round)
	s.collectInjectables(doc, result)
	s.collectMeta(doc, result)

	content := selectContentFragment(doc)
	if content != nil {
		if object.IsSubmittable() {
			s.rewriteForms(content, object)
		} else {
			s.populateEmbeddedExercises(ctx, content, object)
		}

		var builder strings.Builder
		if err := html.Render(&builder, content); err != nil {
			return nil, &aplus.ParseError{URL: page.URL, Err: err}
		}
		result.Content = builder.String()
	}

	return result, nil
}

// selectContentFragment picks the content element: a known fragment id first,
// then the entry-content class, then the document body. Returns nil when the
// document has none of them.
func selectContentFragment(doc *html.Node) *html.Node {
	if found := findElement(doc, func(node *html.Node) bool {
		_, ok := contentFragmentIDs[getAttr(node, "id")]
		return ok
	}); found != nil {
		return found
	}

	if found := findElement(doc, func(node *html.Node) bool {
		return strings.TrimSpace(getAttr(node, "class")) == "entry-content"
	}); found != nil {
		return found
	}

	return findElement(doc, func(node *html.Node) bool {
		return node.Data == "body"
	})
}

func (s *pageExtractor) rewriteURLs(ctx context.Context, doc *html.Node, base *url.URL, object models.LearningObject, round models.Round) {
	courseSegment := firstPathSegment(base.Path)

	for _, rule := range urlRewriteRules {
		walkElements(doc, func(node *html.Node) {
			if node.Data != rule.tag {
				return
			}
			value := getAttr(node, rule.attr)
			if value == "" {
				return
			}

			if rule.tag == "a" && isInternalChapterLink(node, value) {
				if target, ok := s.resolveChapterLink(ctx, value, object, round); ok {
					setAttr(node, rule.attr, target)
				}
				// An unresolvable chapter reference is a tolerated broken
				// link, left untouched.
				return
			}

			if template := getAttr(node, attrPathTemplate); template != "" {
				substituted := strings.ReplaceAll(template, "{course}", courseSegment)
				value = strings.TrimRight(substituted, "/") + "/" + path.Base(value)
			} else if isAbsoluteURL(value) {
				return
			}

			setAttr(node, rule.attr, s.absolutize(base, value))
		})
	}
}

func (s *pageExtractor) absolutize(base *url.URL, value string) string {
	relative, err := url.Parse(value)
	if err != nil {
		return value
	}

	resolved := base.ResolveReference(relative)
	if replacement, ok := s.cfg.HostRemap[resolved.Host]; ok {
		resolved.Host = replacement
	}

	return resolved.String()
}

// resolveChapterLink maps an internal chapter reference to its canonical
// in-host URL, preserving the anchor. The cross-round form is resolved within
// the course, the short form within the object's own round.
func (s *pageExtractor) resolveChapterLink(ctx context.Context, href string, object models.LearningObject, round models.Round) (string, bool) {
	link, ok := parseChapterLink(href)
	if !ok {
		return "", false
	}

	var (
		chapter models.LearningObject
		err     error
	)
	if link.RoundKey != "" {
		chapter, err = s.objects.FindChapterByKeys(ctx, round.CourseID, link.RoundKey, link.ChapterKey)
	} else {
		if object.RoundID == 0 {
			return "", false
		}
		chapter, err = s.objects.FindChapterInRound(ctx, object.RoundID, link.ChapterKey)
	}
	if err != nil {
		return "", false
	}

	return s.objectURL(chapter.ID) + link.Anchor, true
}

func (s *pageExtractor) collectAliasScripts(doc *html.Node, result *ExercisePage) {
	scripts := collectElements(doc, func(node *html.Node) bool {
		return node.Data == "script" && hasAttr(node, attrJQueryAlias)
	})

	for _, script := range scripts {
		alias := strings.TrimSpace(getAttr(script, attrJQueryAlias))
		if alias == "" {
			alias = defaultJQueryAlias
		}
		result.AliasScripts = append(result.AliasScripts, AliasScript{
			Code:  elementText(script),
			Alias: alias,
		})
		if script.Parent != nil {
			script.Parent.RemoveChild(script)
		}
	}
}

func (s *pageExtractor) collectInjectables(doc *html.Node, result *ExercisePage) {
	head := findElement(doc, func(node *html.Node) bool { return node.Data == "head" })
	if head == nil {
		return
	}

	walkElements(head, func(node *html.Node) {
		if !hasAttr(node, attrInjectable) {
			return
		}

		switch node.Data {
		case "link":
			if strings.EqualFold(getAttr(node, "rel"), "stylesheet") {
				if href := getAttr(node, "href"); href != "" {
					result.InjectedCSSURLs = append(result.InjectedCSSURLs, href)
				}
			}
		case "script":
			if src := getAttr(node, "src"); src != "" {
				result.InjectedJSURLs = append(result.InjectedJSURLs, src)
			} else if code := elementText(node); strings.TrimSpace(code) != "" {
				result.InjectedJSCode = append(result.InjectedJSCode, code)
			}
		}
	})
}

func (s *pageExtractor) collectMeta(doc *html.Node, result *ExercisePage) {
	walkElements(doc, func(node *html.Node) {
		if node.Data != "meta" {
			return
		}
		name := getAttr(node, "name")
		if name == "" {
			return
		}
		value := getAttr(node, "value")
		if value == "" {
			value = getAttr(node, "content")
		}
		result.Meta[name] = value
	})

	status := result.Meta[metaStatus]
	points, pointsPresent := result.Meta[metaPoints]

	result.IsGraded = pointsPresent
	result.IsAccepted = status == metaStatusAccepted || pointsPresent
	result.IsRejected = status == metaStatusRejected
	result.IsWait = result.IsAccepted && !result.IsGraded && result.Meta[metaWait] != ""

	if pointsPresent {
		if parsed, err := strconv.Atoi(strings.TrimSpace(points)); err == nil {
			result.Points = parsed
		} else {
			s.logger.Warn().Str("points", points).Msg("unparseable points meta value")
		}
	}

	// The underscore spelling wins when both are present.
	maxPoints, ok := result.Meta[metaMaxPointsUn]
	if !ok {
		maxPoints, ok = result.Meta[metaMaxPointsHy]
	}
	if ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(maxPoints)); err == nil {
			result.MaxPoints = parsed
		}
	}

	result.Title = result.Meta[metaTitle]
	if result.Title == "" {
		if title := findElement(doc, func(node *html.Node) bool { return node.Data == "title" }); title != nil {
			result.Title = strings.TrimSpace(elementText(title))
		}
	}
	result.Description = result.Meta[metaDescription]
}

// rewriteForms points every form at the host's submission endpoint for the
// exercise and suffixes checkbox groups so multiple values survive form
// parsing under one key.
func (s *pageExtractor) rewriteForms(content *html.Node, object models.LearningObject) {
	forms := collectElements(content, func(node *html.Node) bool { return node.Data == "form" })

	for _, form := range forms {
		setAttr(form, "action", s.objectURL(object.ID)+"/submissions")

		checkboxesByName := make(map[string][]*html.Node)
		walkElements(form, func(node *html.Node) {
			if node.Data != "input" || !strings.EqualFold(getAttr(node, "type"), "checkbox") {
				return
			}
			name := getAttr(node, "name")
			if name == "" {
				return
			}
			checkboxesByName[name] = append(checkboxesByName[name], node)
		})

		for name, checkboxes := range checkboxesByName {
			if len(checkboxes) < 2 || strings.HasSuffix(name, "[]") {
				continue
			}
			for _, checkbox := range checkboxes {
				setAttr(checkbox, "name", name+"[]")
			}
		}
	}
}

// populateEmbeddedExercises assigns ids and exercise URLs to the chapter's
// embedded-exercise placeholders, pairing them with the chapter's direct
// children in document and order-number order.
func (s *pageExtractor) populateEmbeddedExercises(ctx context.Context, content *html.Node, object models.LearningObject) {
	placeholders := collectElements(content, func(node *html.Node) bool {
		return hasAttr(node, attrEmbeddedExercise)
	})
	if len(placeholders) == 0 {
		return
	}

	children, err := s.objects.ListChildren(ctx, object.ID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("chapter_id", object.ID).Msg("listing chapter children failed")
		return
	}

	for i, placeholder := range placeholders {
		if i >= len(children) {
			break
		}
		child := children[i]
		setAttr(placeholder, "id", fmt.Sprintf("chapter-exercise-%d", child.ID))
		setAttr(placeholder, attrEmbeddedExercise, s.objectURL(child.ID))
	}
}

func (s *pageExtractor) objectURL(id uint) string {
	return fmt.Sprintf("%s/api/v1/exercises/%d", s.cfg.BaseURL, id)
}

func firstPathSegment(urlPath string) string {
	for _, segment := range strings.Split(urlPath, "/") {
		if segment != "" {
			return segment
		}
	}
	return ""
}
