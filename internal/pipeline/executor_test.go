package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/modelmig/internal/codec"
	"github.com/conduit-lang/modelmig/internal/metamodel"
	"github.com/conduit-lang/modelmig/internal/migerr"
	"github.com/conduit-lang/modelmig/internal/steps"
	"github.com/conduit-lang/modelmig/internal/tree"
)

const personsV1 = `<?xml version="1.0" encoding="UTF-8"?>
<personlist:List xmi:version="2.0" xmlns:xmi="http://www.omg.org/XMI" xmlns:personlist="http://www.example.org/personlist/1.0">
  <members firstname="John" lastname="Doe"/>
  <members firstname="Jane" lastname="Doe" gender="FEMALE"/>
</personlist:List>
`

const personsV09 = `<?xml version="1.0" encoding="UTF-8"?>
<personlist:List xmi:version="2.0" xmlns:xmi="http://www.omg.org/XMI" xmlns:personlist="http://www.example.org/personlist/0.9">
  <members firstname="John" surname="Doe" gender="MALE"/>
  <members firstname="Jane" surname="Doe" gender="FEMALE"/>
</personlist:List>
`

const personsV2 = `<?xml version="1.0" encoding="UTF-8"?>
<personlist:List xmi:version="2.0"
    xmlns:xmi="http://www.omg.org/XMI"
    xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
    xmlns:personlist="http://www.example.org/personlist/2.0">
  <members xsi:type="personlist:Male"
      name="John Doe"/>
  <members xsi:type="personlist:Female"
      name="Jane Doe"/>
</personlist:List>
`

func setup(t *testing.T, filename, src string) (*metamodel.Registry, *tree.Document, *metamodel.Pipeline) {
	t.Helper()
	registry, err := metamodel.Default()
	require.NoError(t, err)

	doc, err := codec.Parse(filename, []byte(src), registry)
	require.NoError(t, err)

	p, err := registry.ResolvePipeline(doc.Kind, doc.Namespace, doc.Version)
	require.NoError(t, err)
	return registry, doc, p
}

func TestExecutor_PersonList(t *testing.T) {
	for name, src := range map[string]string{"from 1.0": personsV1, "from 0.9": personsV09} {
		t.Run(name, func(t *testing.T) {
			_, doc, p := setup(t, "My.persons", src)
			before := string(codec.Serialize(doc))
			version := doc.Version

			result, err := NewExecutor().Run(doc, p, nil)
			require.NoError(t, err)
			assert.False(t, result.Noop)
			assert.Equal(t, len(p.Steps), result.Applied)
			assert.Empty(t, result.Mappings)
			assert.Equal(t, personsV2, string(codec.Serialize(result.Document)))

			// the input document is left as it was
			assert.Equal(t, before, string(codec.Serialize(doc)))
			assert.Equal(t, version, doc.Version)
		})
	}
}

func TestExecutor_Idempotent(t *testing.T) {
	registry, doc, p := setup(t, "My.persons", personsV1)
	exec := NewExecutor()

	first, err := exec.Run(doc, p, nil)
	require.NoError(t, err)

	reparsed, err := codec.Parse("My.persons", codec.Serialize(first.Document), registry)
	require.NoError(t, err)
	again, err := registry.ResolvePipeline(reparsed.Kind, reparsed.Namespace, reparsed.Version)
	require.NoError(t, err)
	assert.True(t, again.Empty())

	second, err := exec.Run(reparsed, again, nil)
	require.NoError(t, err)
	assert.True(t, second.Noop)
	assert.Same(t, reparsed, second.Document)
	assert.Equal(t, personsV2, string(codec.Serialize(second.Document)))
}

func TestExecutor_StepErrorWrapsCause(t *testing.T) {
	_, doc, p := setup(t, "Odd.persons", `<personlist:List xmlns:personlist="http://www.example.org/personlist/1.0">
  <members firstname="Alex" lastname="Poe" gender="OTHER"/>
</personlist:List>`)

	_, err := NewExecutor().Run(doc, p, nil)
	require.Error(t, err)

	var stepErr *migerr.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "Odd.persons", stepErr.Filename)
	assert.Equal(t, 1, stepErr.Index)
	assert.Equal(t, "retype", stepErr.Step)

	var variant *migerr.NoMatchingVariantError
	require.True(t, errors.As(err, &variant))
	assert.Equal(t, "/List/members[1]", variant.Path)
	assert.Equal(t, migerr.CodeNoMatchingVariant, migerr.CodeOf(err))
	assert.Equal(t, "Odd.persons", migerr.FilenameOf(err))
}

func TestExecutor_TargetMismatch(t *testing.T) {
	doc, err := codec.Parse("a.persons", []byte(personsV1), nil)
	require.NoError(t, err)

	p := &metamodel.Pipeline{
		Kind:            "personlist",
		TargetNamespace: "http://www.example.org/personlist",
		TargetVersion:   "2.0",
		Steps: []steps.Step{
			&steps.DropAttribute{Match: tree.MustParsePath("//members"), Attribute: "gender"},
			&steps.RenameNamespace{Version: "1.5"},
		},
	}

	_, err = NewExecutor().Run(doc, p, nil)
	var mismatch *migerr.TargetMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "1.5", mismatch.GotVersion)
	assert.Equal(t, "2.0", mismatch.WantVersion)
	assert.Equal(t, migerr.CodeTargetMismatch, migerr.CodeOf(err))
}

const booksV1 = `<?xml version="1.0" encoding="UTF-8"?>
<books:BookDatabase xmlns:books="http://www.example.org/books/1.0">
  <entries title="Dune" year="1965" copies="3"/>
  <entries title="Emma" year="1815"/>
</books:BookDatabase>
`

func TestExecutor_RecordsIdentifierMappings(t *testing.T) {
	_, doc, p := setup(t, "Db.books", booksV1)

	result, err := NewExecutor().Run(doc, p, nil)
	require.NoError(t, err)

	assert.Equal(t, []steps.Mapping{
		{Kind: "books", Old: "Db.books#//@entries.0", New: "Db.books#36e60bf0-a1bb-5d9d-ad98-40cc8611e940"},
		{Kind: "books", Old: "Db.books#//@entries.1", New: "Db.books#73d9a7a0-0897-5224-8dc7-c2b78492fdde"},
	}, result.Mappings)

	want := `<?xml version="1.0" encoding="UTF-8"?>
<books:BookDatabase xmlns:books="http://www.example.org/books/2.0">
  <entries id="36e60bf0-a1bb-5d9d-ad98-40cc8611e940"
      title="Dune"
      published="1965"/>
  <entries id="73d9a7a0-0897-5224-8dc7-c2b78492fdde"
      title="Emma"
      published="1815"/>
</books:BookDatabase>
`
	assert.Equal(t, want, string(codec.Serialize(result.Document)))
}
