// Package blkcache implements the fixed-capacity, strict-LRU block
// cache every disk access in this kernel goes through (component J).
//
// Grounded on the teacher's Bdev_block_t / Disk_i (biscuit/src/fs/blk.go):
// a cached block carries a disk-backed page of content, a dirty bit, and
// a reference to the disk it came from; reads and writes operate on the
// cached copy and synchronous disk I/O only happens on a miss or a flush.
// The teacher builds its block lists on container/list; this package
// keeps that same stdlib container for the LRU's ordering structure.
package blkcache

import (
	"container/list"

	"kernix/addr"
	"kernix/errs"
	"kernix/lock"
)

// BlockSize is the size of one cached unit — a disk block is exactly
// one page, so the cache can reuse the kernel's page-sized buffers
// without a separate allocator.
const BlockSize = addr.PageSize

// Disk is the synchronous block device a cache miss or a flush reads
// from or writes to. Real disks are asynchronous; this interface is the
// synchronous façade the teacher's Disk_i.Start + <-AckCh pattern
// presents to its callers.
type Disk interface {
	ReadBlock(block int, buf *[BlockSize]byte) errs.Err_t
	WriteBlock(block int, buf *[BlockSize]byte) errs.Err_t
}

// key identifies one cached block across potentially multiple disks.
type key struct {
	disk  int
	block int
}

type entry struct {
	key   key
	buf   [BlockSize]byte
	dirty bool
}

// Cache is a fixed-capacity LRU of disk blocks, most-recently-used at
// the front of the list. Every access (Read or Write) moves its entry
// to the front; eviction always takes the back entry, flushing it
// first if dirty.
type Cache struct {
	mu       lock.Spinlock
	disks    map[int]Disk
	capacity int
	order    *list.List // of *entry, front = MRU, back = LRU
	index    map[key]*list.Element

	hits, misses, evictions, flushes uint64
}

// New builds a cache with room for capacity blocks across any disk
// registered with Attach.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		disks:    make(map[int]Disk),
		capacity: capacity,
		order:    list.New(),
		index:    make(map[key]*list.Element),
	}
}

// Attach registers the Disk backing a given disk id, so Read/Write on
// that id knows where to go on a miss or a flush.
func (c *Cache) Attach(disk int, d Disk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disks[disk] = d
}

// Stats reports the cache's lifetime hit/miss/eviction/flush counts.
type Stats struct {
	Hits, Misses, Evictions, Flushes uint64
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions, Flushes: c.flushes}
}

func (c *Cache) touch(el *list.Element) {
	c.order.MoveToFront(el)
}

// lookup finds disk:block, promoting it to MRU on hit. Caller holds mu.
func (c *Cache) lookup(k key) (*entry, bool) {
	el, ok := c.index[k]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.touch(el)
	return el.Value.(*entry), true
}

// fetch loads disk:block from its backing Disk, evicting an entry first
// if the cache is at capacity. Caller holds mu.
func (c *Cache) fetch(k key) (*entry, errs.Err_t) {
	if len(c.index) >= c.capacity {
		if e := c.evictOne(); e.IsErr() {
			return nil, e
		}
	}
	d, ok := c.disks[k.disk]
	if !ok {
		return nil, errs.NoDisk
	}
	e := &entry{key: k}
	if err := d.ReadBlock(k.block, &e.buf); err.IsErr() {
		return nil, err
	}
	el := c.order.PushFront(e)
	c.index[k] = el
	return e, errs.OK
}

// evictOne drops the current LRU entry, flushing it first if dirty.
// Caller holds mu.
func (c *Cache) evictOne() errs.Err_t {
	back := c.order.Back()
	if back == nil {
		return errs.OK
	}
	e := back.Value.(*entry)
	if e.dirty {
		if err := c.flushEntry(e); err.IsErr() {
			return err
		}
	}
	c.order.Remove(back)
	delete(c.index, e.key)
	c.evictions++
	return errs.OK
}

func (c *Cache) flushEntry(e *entry) errs.Err_t {
	d, ok := c.disks[e.key.disk]
	if !ok {
		return errs.NoDisk
	}
	if err := d.WriteBlock(e.key.block, &e.buf); err.IsErr() {
		return err
	}
	e.dirty = false
	c.flushes++
	return errs.OK
}

// Read returns the current content of disk:block, loading it from disk
// on a miss.
func (c *Cache) Read(disk, block int) ([BlockSize]byte, errs.Err_t) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{disk: disk, block: block}
	e, ok := c.lookup(k)
	if !ok {
		var err errs.Err_t
		e, err = c.fetch(k)
		if err.IsErr() {
			return [BlockSize]byte{}, err
		}
	}
	return e.buf, errs.OK
}

// Write replaces disk:block's cached content with buf in full and marks
// it dirty. On a miss the block is first loaded into the cache (taking
// an LRU slot, evicting if needed) and then overwritten.
func (c *Cache) Write(disk, block int, buf [BlockSize]byte) errs.Err_t {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{disk: disk, block: block}
	e, ok := c.lookup(k)
	if !ok {
		var err errs.Err_t
		e, err = c.fetch(k)
		if err.IsErr() {
			return err
		}
	}
	e.buf = buf
	e.dirty = true
	return errs.OK
}

// FlushBlock forces disk:block to disk if it is cached and dirty. It is
// not an error to flush a block that is not cached or already clean.
func (c *Cache) FlushBlock(disk, block int) errs.Err_t {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{disk: disk, block: block}
	el, ok := c.index[k]
	if !ok {
		return errs.OK
	}
	e := el.Value.(*entry)
	if !e.dirty {
		return errs.OK
	}
	return c.flushEntry(e)
}

// FlushAll forces every dirty block in the cache to disk, in LRU-to-MRU
// order, for a clean shutdown or a journal checkpoint.
func (c *Cache) FlushAll() errs.Err_t {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.dirty {
			if err := c.flushEntry(e); err.IsErr() {
				return err
			}
		}
	}
	return errs.OK
}

// Len reports how many blocks are currently cached, for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}
