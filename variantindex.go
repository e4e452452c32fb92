package plinkbgen

import (
	"os"
	"time"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"
)

// BGIIndex wraps the SQLite variant index that sits next to a
// probabilistic-format file and maps each variant onto its byte span.
type BGIIndex struct {
	DB       *sqlx.DB
	Metadata *BGIMetadata
}

func (b *BGIIndex) Close() error {
	return b.DB.Close()
}

// VariantIndex conforms to the rows of the SQLite table "Variant" in index
// files, and can be parsed with sqlx.
type VariantIndex struct {
	Chromosome        string
	Position          uint32
	RSID              string `db:"rsid"`
	NAlleles          uint16 `db:"number_of_alleles"`
	Allele1           Allele
	Allele2           Allele
	FileStartPosition uint `db:"file_start_position"`
	SizeInBytes       uint `db:"size_in_bytes"`
}

// BGIMetadata conforms to the rows of the SQLite table "Metadata".
type BGIMetadata struct {
	Filename           string
	FileSize           uint   `db:"file_size"`
	LastWriteTime      Time   `db:"last_write_time"`
	FirstThousandBytes []byte `db:"first_1000_bytes"`
	IndexCreationTime  Time   `db:"index_creation_time"`
}

// OpenBGI opens an existing index file.
func OpenBGI(path string) (*BGIIndex, error) {
	db, err := connectBGI(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	bgi := &BGIIndex{
		DB:       db,
		Metadata: &BGIMetadata{},
	}

	// Not all index files have metadata; ignore any error
	_ = bgi.DB.Get(bgi.Metadata, "SELECT * FROM Metadata LIMIT 1")

	return bgi, nil
}

const bgiSchema = `
CREATE TABLE IF NOT EXISTS Variant (
	chromosome TEXT NOT NULL,
	position INTEGER NOT NULL,
	rsid TEXT NOT NULL,
	number_of_alleles INTEGER NOT NULL,
	allele1 TEXT NOT NULL,
	allele2 TEXT NOT NULL,
	file_start_position INTEGER NOT NULL,
	size_in_bytes INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS Metadata (
	filename TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	last_write_time INTEGER NOT NULL,
	first_1000_bytes BLOB NOT NULL,
	index_creation_time INTEGER NOT NULL
);`

// CreateBGI creates (truncating) an index file at path.
func CreateBGI(path string) (*BGIIndex, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, pfx.Err(err)
	}

	db, err := connectBGI(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	if _, err := db.Exec(bgiSchema); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	return &BGIIndex{DB: db, Metadata: &BGIMetadata{}}, nil
}

// Insert adds one variant span.
func (b *BGIIndex) Insert(v VariantIndex) error {
	_, err := b.DB.Exec(
		`INSERT INTO Variant (chromosome, position, rsid, number_of_alleles, allele1, allele2, file_start_position, size_in_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Chromosome, v.Position, v.RSID, v.NAlleles, string(v.Allele1), string(v.Allele2), v.FileStartPosition, v.SizeInBytes,
	)
	if err != nil {
		return pfx.Err(err)
	}

	return nil
}

// WriteMetadata records the indexed file's name, size, and leading bytes.
func (b *BGIIndex) WriteMetadata(indexedPath string) error {
	info, err := os.Stat(indexedPath)
	if err != nil {
		return pfx.Err(err)
	}

	head := make([]byte, 1000)
	f, err := os.Open(indexedPath)
	if err != nil {
		return pfx.Err(err)
	}
	n, _ := f.Read(head)
	f.Close()

	_, err = b.DB.Exec(
		`INSERT INTO Metadata (filename, file_size, last_write_time, first_1000_bytes, index_creation_time)
		 VALUES (?, ?, ?, ?, ?)`,
		info.Name(), info.Size(), Time(info.ModTime()), head[:n], Time(time.Now()),
	)
	if err != nil {
		return pfx.Err(err)
	}

	return nil
}

// writeIndex emits the index next to the finalized probabilistic file, one
// row per variant span recorded during the pass.
func (e *Encoder) writeIndex() error {
	path := e.cfg.OutputPrefix + ".bgen.bgi"

	bgi, err := CreateBGI(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer bgi.Close()

	for _, span := range e.spans {
		v := VariantIndex{
			Chromosome:        span.variant.Chromosome,
			Position:          span.variant.Position,
			RSID:              span.variant.RSID,
			NAlleles:          span.variant.NAlleles,
			FileStartPosition: uint(span.start),
			SizeInBytes:       uint(span.size),
		}
		if len(span.variant.Alleles) > 0 {
			v.Allele1 = span.variant.Alleles[0]
		}
		if len(span.variant.Alleles) > 1 {
			v.Allele2 = span.variant.Alleles[1]
		}
		if err := bgi.Insert(v); err != nil {
			return pfx.Err(err)
		}
	}

	if err := bgi.WriteMetadata(e.cfg.OutputPrefix + ".bgen"); err != nil {
		return pfx.Err(err)
	}

	return nil
}

func WhichSQLiteDriver() string {
	return whichSQLiteDriver
}
